package collab

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTextOperation builds a text-level edit. Length is optional because
// inserts never carry one; deletes and replaces should pass it, but the
// builder does not enforce that — structural completeness is checked at
// the transport boundary by Validate.
func NewTextOperation(taskID, userID, field string, kind OpKind, content string, position int, length ...int) EditOperation {
	op := EditOperation{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		UserID:    userID,
		Field:     field,
		Type:      OpTypeText,
		Op:        kind,
		Content:   content,
		Position:  position,
		Timestamp: time.Now().UTC(),
	}
	if len(length) > 0 {
		n := length[0]
		op.Length = &n
	}
	return op
}

// NewFieldOperation builds a whole-field write. Field operations are always
// replaces and carry opaque content with no position or length.
func NewFieldOperation(taskID, userID, field, content string) EditOperation {
	return EditOperation{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		UserID:    userID,
		Field:     field,
		Type:      OpTypeField,
		Op:        OpReplace,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks structural completeness of an operation before it is
// accepted by a backend.
func (op EditOperation) Validate() error {
	if op.TaskID == "" {
		return fmt.Errorf("operation missing task id")
	}
	if op.UserID == "" {
		return fmt.Errorf("operation missing user id")
	}
	if op.Field == "" {
		return fmt.Errorf("operation missing field")
	}
	switch op.Type {
	case OpTypeField:
		if op.Op != OpReplace {
			return fmt.Errorf("field operation must be a replace, got %q", op.Op)
		}
		if op.Length != nil {
			return fmt.Errorf("field operation must not carry a length")
		}
	case OpTypeText:
		switch op.Op {
		case OpInsert:
		case OpDelete, OpReplace:
			if op.Length == nil {
				return fmt.Errorf("text %s must carry a length", op.Op)
			}
			if *op.Length < 0 {
				return fmt.Errorf("negative length %d", *op.Length)
			}
		default:
			return fmt.Errorf("unknown operation kind %q", op.Op)
		}
		if op.Position < 0 {
			return fmt.Errorf("negative position %d", op.Position)
		}
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}
