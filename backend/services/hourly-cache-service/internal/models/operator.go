package models

import "fmt"

// OperatorRef points at the operator working a station, or at nobody.
// The zero value is Unassigned.
type OperatorRef struct {
	id       int64
	name     string
	assigned bool
}

// Unassigned is the reference for a station without an operator.
var Unassigned = OperatorRef{}

// Assigned returns a reference to a real operator.
func Assigned(id int64, name string) OperatorRef {
	return OperatorRef{id: id, name: name, assigned: true}
}

// IsAssigned reports whether the reference names a real operator.
func (o OperatorRef) IsAssigned() bool {
	return o.assigned
}

// ID returns the operator id and whether one is assigned.
func (o OperatorRef) ID() (int64, bool) {
	return o.id, o.assigned
}

// Name returns the operator display name; empty when unassigned.
func (o OperatorRef) Name() string {
	return o.name
}

// DisplayName falls back to a synthesized label when no name was recorded.
func (o OperatorRef) DisplayName() string {
	if !o.assigned {
		return ""
	}
	if o.name != "" {
		return o.name
	}
	return fmt.Sprintf("Operator %d", o.id)
}

func (o OperatorRef) String() string {
	if !o.assigned {
		return "unassigned"
	}
	return fmt.Sprintf("operator(%d)", o.id)
}
