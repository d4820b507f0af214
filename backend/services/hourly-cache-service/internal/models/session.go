package models

import "time"

// Machine identifies a production machine.
type Machine struct {
	Serial int64  `json:"serial"`
	Name   string `json:"name"`
}

// MachineSession is one continuous run of a machine. End is nil while the session is open.
type MachineSession struct {
	ID                 int64
	Machine            Machine
	Start              time.Time
	End                *time.Time
	TotalCount         float64
	TotalTimeCreditSec float64
	MisfeedCount       float64
	Operators          []OperatorRef
}

// ActiveStations counts operator slots with a real operator assigned.
func (s MachineSession) ActiveStations() int {
	n := 0
	for _, op := range s.Operators {
		if op.IsAssigned() {
			n++
		}
	}
	return n
}

// OperatorSession is one continuous period of a single operator working a machine.
type OperatorSession struct {
	ID                 int64
	Machine            Machine
	Operator           OperatorRef
	Start              time.Time
	End                *time.Time
	TotalCount         float64
	TotalTimeCreditSec float64
	MisfeedCount       float64
}
