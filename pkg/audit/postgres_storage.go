package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists audit events in an append-only table. The schema
// carries no UPDATE or DELETE paths; retention is handled outside the audit
// trail.
//
//	CREATE TABLE audit_events (
//	    id          UUID PRIMARY KEY,
//	    grant_id    TEXT,
//	    user_id     TEXT,
//	    patient_id  TEXT,
//	    action      TEXT NOT NULL,
//	    resource    TEXT,
//	    resource_id TEXT,
//	    result      TEXT NOT NULL,
//	    error       TEXT,
//	    metadata    JSONB,
//	    checksum    TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Storage backed by the given connection pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	if pool == nil {
		panic("audit: pool cannot be nil")
	}
	return &PostgresStorage{pool: pool}
}

const insertEventSQL = `
INSERT INTO audit_events
    (id, grant_id, user_id, patient_id, action, resource, resource_id, result, error, metadata, checksum, created_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Store appends events inside a single transaction so a batch is
// all-or-nothing.
func (s *PostgresStorage) Store(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.Join(ErrEventValidation, err)
		}
		if _, err := tx.Exec(ctx, insertEventSQL,
			e.ID, e.GrantID, e.UserID, e.PatientID, e.Action, e.Resource,
			e.ResourceID, string(e.Result), e.Error, metadata, e.Checksum, e.CreatedAt,
		); err != nil {
			return errors.Join(ErrStorageNotAvailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// Query returns matching events ordered oldest-first.
func (s *PostgresStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	where, args := buildWhere(criteria)

	sql := `SELECT id, grant_id, user_id, patient_id, action, resource, resource_id, result, error, metadata, checksum, created_at
FROM audit_events` + where + ` ORDER BY created_at ASC`

	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	return events, nil
}

// Count implements StorageCounter with a COUNT query.
func (s *PostgresStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	where, args := buildWhere(criteria)

	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	return n, nil
}

func buildWhere(c Criteria) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if c.GrantID != "" {
		add("grant_id = $%d", c.GrantID)
	}
	if c.UserID != "" {
		add("user_id = $%d", c.UserID)
	}
	if c.PatientID != "" {
		add("patient_id = $%d", c.PatientID)
	}
	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if !c.From.IsZero() {
		add("created_at >= $%d", c.From)
	}
	if !c.To.IsZero() {
		add("created_at <= $%d", c.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvent(rows pgx.Rows) (Event, error) {
	var (
		e        Event
		result   string
		metadata []byte
	)
	if err := rows.Scan(
		&e.ID, &e.GrantID, &e.UserID, &e.PatientID, &e.Action, &e.Resource,
		&e.ResourceID, &result, &e.Error, &metadata, &e.Checksum, &e.CreatedAt,
	); err != nil {
		return Event{}, errors.Join(ErrStorageNotAvailable, err)
	}
	e.Result = Result(result)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return Event{}, errors.Join(ErrEventValidation, err)
		}
	}
	return e, nil
}
