package store

import (
	"context"
	"database/sql"
	"fmt"

	"pairtask/engine/internal/collab"
)

// OperationArchive is an append-only record of every operation the sync
// service accepted.
type OperationArchive struct {
	db *sql.DB
}

func NewOperationArchive(db *sql.DB) *OperationArchive {
	return &OperationArchive{db: db}
}

func (a *OperationArchive) DB() *sql.DB {
	return a.db
}

// EnsureSchema creates the archive table if it does not exist.
func (a *OperationArchive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS edit_operations (
			id          TEXT PRIMARY KEY,
			task_id     TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			field       TEXT NOT NULL,
			op_type     TEXT NOT NULL,
			op_kind     TEXT NOT NULL,
			content     TEXT NOT NULL,
			position    INTEGER,
			length      INTEGER,
			applied_at  TIMESTAMPTZ NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS edit_operations_task_idx
		ON edit_operations (task_id, archived_at)
	`)
	if err != nil {
		return fmt.Errorf("ensure archive index: %w", err)
	}
	return nil
}

// ArchiveOperation records one accepted operation. Re-archiving the same
// operation id is a no-op, so retried applies stay deduplicated.
func (a *OperationArchive) ArchiveOperation(ctx context.Context, op collab.EditOperation) error {
	var length sql.NullInt64
	if op.Length != nil {
		length = sql.NullInt64{Int64: int64(*op.Length), Valid: true}
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO edit_operations (id, task_id, user_id, field, op_type, op_kind, content, position, length, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, op.ID, op.TaskID, op.UserID, op.Field, string(op.Type), string(op.Op), op.Content, op.Position, length, op.Timestamp)
	if err != nil {
		return fmt.Errorf("archive operation: %w", err)
	}
	return nil
}

// ListOperations returns the archived log for a task in archive order.
func (a *OperationArchive) ListOperations(ctx context.Context, taskID string) ([]collab.EditOperation, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, field, op_type, op_kind, content, position, length, applied_at
		FROM edit_operations
		WHERE task_id = $1
		ORDER BY archived_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []collab.EditOperation
	for rows.Next() {
		var op collab.EditOperation
		var opType, opKind string
		var length sql.NullInt64
		if err := rows.Scan(&op.ID, &op.TaskID, &op.UserID, &op.Field, &opType, &opKind, &op.Content, &op.Position, &length, &op.Timestamp); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Type = collab.OpType(opType)
		op.Op = collab.OpKind(opKind)
		if length.Valid {
			n := int(length.Int64)
			op.Length = &n
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
