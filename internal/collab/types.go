// Package collab defines the value types shared by the collaborative
// task-editing engine: edit operations, collaborator cursors, and the
// per-task edit session.
package collab

import "time"

// OpType distinguishes character-level text edits from whole-field writes.
type OpType string

const (
	OpTypeText  OpType = "text"
	OpTypeField OpType = "field"
)

// OpKind is what the edit does to its target.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpReplace OpKind = "replace"
)

// EditOperation is an immutable record of one accepted edit to a task field.
// Field operations are always replaces and carry no position/length; text
// operations carry Position, and deletes/replaces should also carry Length.
type EditOperation struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Field     string    `json:"field"`
	Type      OpType    `json:"type"`
	Op        OpKind    `json:"operation"`
	Content   string    `json:"content"`
	Position  int       `json:"position,omitempty"`
	Length    *int      `json:"length,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CollaboratorCursor is an ephemeral presence record: which field a
// collaborator's cursor occupies and where. It lives only as long as the
// backend reports the user as present.
type CollaboratorCursor struct {
	UserID   string    `json:"userId"`
	Field    string    `json:"field"`
	Position int       `json:"position"`
	LastSeen time.Time `json:"lastSeen"`
}

// EditSession is the local record of an in-progress collaborative edit on
// one task. Editors is keyed by user id; the last write for a user replaces
// their prior entry. Invariant: LockOwner is non-empty iff IsLocked.
type EditSession struct {
	TaskID     string                        `json:"taskId"`
	Editors    map[string]CollaboratorCursor `json:"editors"`
	Operations []EditOperation               `json:"operations"`
	IsLocked   bool                          `json:"isLocked"`
	LockOwner  string                        `json:"lockOwner,omitempty"`
}

// NewEditSession returns an empty, unlocked session for taskID.
func NewEditSession(taskID string) EditSession {
	return EditSession{
		TaskID:  taskID,
		Editors: map[string]CollaboratorCursor{},
	}
}

// Clone returns a deep copy so callers can hand sessions across goroutines
// without sharing the editors map or operation slice.
func (s EditSession) Clone() EditSession {
	out := s
	out.Editors = make(map[string]CollaboratorCursor, len(s.Editors))
	for id, cursor := range s.Editors {
		out.Editors[id] = cursor
	}
	out.Operations = append([]EditOperation(nil), s.Operations...)
	return out
}
