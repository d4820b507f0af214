package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/models"
)

// unassignedOperatorID is how session writers mark a station with nobody on it.
const unassignedOperatorID int64 = -1

// SessionRepository reads raw machine and operator sessions.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{db: db, logger: logger}
}

// storedOperator mirrors one element of the operators JSONB column. Writers have
// emitted ids as numbers and as numeric strings.
type storedOperator struct {
	ID   json.RawMessage `json:"id"`
	Name string          `json:"name"`
}

var errOperatorID = errors.New("operator id is not an integer")

// MachineSessionsSince returns sessions of machineSerial started at or after since, oldest first.
func (r *SessionRepository) MachineSessionsSince(ctx context.Context, machineSerial int64, since time.Time) ([]models.MachineSession, error) {
	const query = `
		SELECT id, machine_serial, machine_name, start_time, end_time,
		       total_count, total_time_credit_sec,
		       COALESCE(misfeed_count, jsonb_array_length(misfeeds), 0),
		       operators
		FROM machine_sessions
		WHERE machine_serial = $1 AND start_time >= $2
		ORDER BY start_time ASC
	`
	rows, err := r.db.QueryContext(ctx, query, machineSerial, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.MachineSession
	for rows.Next() {
		var (
			s         models.MachineSession
			end       sql.NullTime
			operators []byte
		)
		if err := rows.Scan(
			&s.ID,
			&s.Machine.Serial,
			&s.Machine.Name,
			&s.Start,
			&end,
			&s.TotalCount,
			&s.TotalTimeCreditSec,
			&s.MisfeedCount,
			&operators,
		); err != nil {
			return nil, err
		}
		s.End = nullTimePtr(end)
		refs, err := decodeOperators(operators)
		if err != nil {
			// The session still counts, just without a station multiplier.
			r.logger.Warn("ignoring malformed session operators",
				zap.Int64("machine_serial", machineSerial),
				zap.Int64("session_id", s.ID),
				zap.Error(err),
			)
			refs = nil
		}
		s.Operators = refs
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// OperatorSessionsSince returns operator-on-machine sessions started at or after since, oldest first.
func (r *SessionRepository) OperatorSessionsSince(ctx context.Context, machineSerial int64, since time.Time) ([]models.OperatorSession, error) {
	const query = `
		SELECT id, machine_serial, machine_name, operator_id, operator_name, start_time, end_time,
		       total_count, total_time_credit_sec,
		       COALESCE(misfeed_count, jsonb_array_length(misfeeds), 0)
		FROM operator_machine_sessions
		WHERE machine_serial = $1 AND start_time >= $2
		ORDER BY start_time ASC
	`
	rows, err := r.db.QueryContext(ctx, query, machineSerial, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.OperatorSession
	for rows.Next() {
		var (
			s            models.OperatorSession
			operatorID   sql.NullInt64
			operatorName string
			end          sql.NullTime
		)
		if err := rows.Scan(
			&s.ID,
			&s.Machine.Serial,
			&s.Machine.Name,
			&operatorID,
			&operatorName,
			&s.Start,
			&end,
			&s.TotalCount,
			&s.TotalTimeCreditSec,
			&s.MisfeedCount,
		); err != nil {
			return nil, err
		}
		s.End = nullTimePtr(end)
		s.Operator = operatorRef(operatorID, operatorName)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func decodeOperators(raw []byte) ([]models.OperatorRef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var stored []storedOperator
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode operators: %w", err)
	}
	refs := make([]models.OperatorRef, 0, len(stored))
	for i, op := range stored {
		id, err := parseOperatorID(op.ID)
		if err != nil {
			return nil, fmt.Errorf("decode operators[%d]: %w", i, err)
		}
		refs = append(refs, operatorRef(id, op.Name))
	}
	return refs, nil
}

func parseOperatorID(raw json.RawMessage) (sql.NullInt64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return sql.NullInt64{}, nil
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
		if text == "" {
			return sql.NullInt64{}, nil
		}
	}
	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return sql.NullInt64{Int64: id, Valid: true}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return sql.NullInt64{}, fmt.Errorf("%w: %s", errOperatorID, string(raw))
	}
	return sql.NullInt64{Int64: int64(f), Valid: true}, nil
}

func operatorRef(id sql.NullInt64, name string) models.OperatorRef {
	if !id.Valid || id.Int64 == unassignedOperatorID {
		return models.Unassigned
	}
	return models.Assigned(id.Int64, name)
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
