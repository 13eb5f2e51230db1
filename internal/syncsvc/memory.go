package syncsvc

import (
	"context"
	"sync"
	"time"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/lock"
)

// Memory is the in-process reference backend. It is the authority for
// lock arbitration and presence within a single process, and is what the
// daemon serves when no Redis is configured.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]*collab.EditSession
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		tasks: map[string]*collab.EditSession{},
		now:   time.Now,
	}
}

func (m *Memory) StartEditSession(_ context.Context, taskID, userID string) Result[collab.EditSession] {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[taskID]
	if !ok {
		created := collab.NewEditSession(taskID)
		sess = &created
		m.tasks[taskID] = sess
	}
	sess.Editors[userID] = collab.CollaboratorCursor{
		UserID:   userID,
		LastSeen: m.now().UTC(),
	}
	return OK(sess.Clone())
}

func (m *Memory) StopEditSession(_ context.Context, taskID, userID string) Result[None] {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[taskID]
	if !ok {
		return Failure[None](CodeNoSession, "no session for task %s", taskID)
	}
	delete(sess.Editors, userID)
	// A departed editor must not hold the task hostage.
	if sess.IsLocked && sess.LockOwner == userID {
		sess.IsLocked = false
		sess.LockOwner = ""
	}
	if len(sess.Editors) == 0 {
		delete(m.tasks, taskID)
	}
	return OK(None{})
}

func (m *Memory) ApplyOperation(_ context.Context, op collab.EditOperation) Result[bool] {
	if err := op.Validate(); err != nil {
		return Failure[bool](CodeInvalid, "%v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[op.TaskID]
	if !ok {
		return Failure[bool](CodeNoSession, "no session for task %s", op.TaskID)
	}
	if sess.IsLocked && sess.LockOwner != op.UserID {
		return OK(false)
	}
	sess.Operations = append(sess.Operations, op)
	if cursor, ok := sess.Editors[op.UserID]; ok {
		cursor.LastSeen = m.now().UTC()
		sess.Editors[op.UserID] = cursor
	}
	return OK(true)
}

func (m *Memory) UpdateCursor(_ context.Context, taskID, userID, field string, position int) Result[None] {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[taskID]
	if !ok {
		return Failure[None](CodeNoSession, "no session for task %s", taskID)
	}
	sess.Editors[userID] = collab.CollaboratorCursor{
		UserID:   userID,
		Field:    field,
		Position: position,
		LastSeen: m.now().UTC(),
	}
	return OK(None{})
}

func (m *Memory) ToggleTaskLock(_ context.Context, taskID, userID string, lockIt bool) Result[bool] {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[taskID]
	if !ok {
		return Failure[bool](CodeNoSession, "no session for task %s", taskID)
	}
	updated, ok := lock.Apply(*sess, userID, !lockIt)
	if !ok {
		if lockIt {
			return Failure[bool](CodeLocked, "task %s is locked by %s", taskID, sess.LockOwner)
		}
		return Failure[bool](CodeNotOwner, "task %s is not locked by %s", taskID, userID)
	}
	*sess = updated
	return OK(sess.IsLocked)
}

func (m *Memory) GetCollaborators(_ context.Context, taskID string) []collab.CollaboratorCursor {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.tasks[taskID]
	if !ok {
		return nil
	}
	out := make([]collab.CollaboratorCursor, 0, len(sess.Editors))
	for _, cursor := range sess.Editors {
		out = append(out, cursor)
	}
	return out
}

// Operations returns the accepted log for a task, in acceptance order.
func (m *Memory) Operations(taskID string) []collab.EditOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.tasks[taskID]
	if !ok {
		return nil
	}
	return append([]collab.EditOperation(nil), sess.Operations...)
}
