// Package edit is the public face of the collaborative task-editing
// engine. The Editor is the only component that talks to the sync
// service; every public call translates into a service call followed by
// session store transitions. Failures never escape as panics or errors:
// each call returns a definite outcome and leaves local state untouched
// when the service says no.
package edit

import (
	"context"
	"log"
	"sync"
	"time"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/presence"
	"pairtask/engine/internal/session"
	"pairtask/engine/internal/syncsvc"
)

// DefaultPollInterval is the cadence at which presence is refreshed for
// the task currently being edited.
const DefaultPollInterval = 2000 * time.Millisecond

type Editor struct {
	svc          syncsvc.Service
	store        *session.Store
	tracker      *presence.Tracker
	userID       string
	pollInterval time.Duration

	// Lock toggles for the local process are serialized; cross-process
	// races are the backend's problem.
	lockMu sync.Mutex

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
}

// New builds an editor bound to an authenticated user. An empty userID is
// allowed but every mutating call will no-op until a real user is bound.
// pollInterval <= 0 selects the default 2s cadence.
func New(svc syncsvc.Service, userID string, pollInterval time.Duration) *Editor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	store := session.NewStore()
	return &Editor{
		svc:          svc,
		store:        store,
		tracker:      presence.NewTracker(svc, store, userID),
		userID:       userID,
		pollInterval: pollInterval,
	}
}

// StartEditing opens a collaborative session for taskID and makes it the
// current task. On failure only the connection flag changes and the task
// stays idle.
func (e *Editor) StartEditing(ctx context.Context, taskID string) bool {
	if e.userID == "" {
		return false
	}

	result := e.svc.StartEditSession(ctx, taskID, e.userID)
	if !result.Ok() {
		log.Printf("edit: start session for task %s: %v", taskID, result.Err)
		e.store.Dispatch(session.UpdateConnection{Connected: false})
		return false
	}

	e.store.Dispatch(session.StartSession{TaskID: taskID, Session: result.Value})
	e.store.Dispatch(session.SetCurrentTask{TaskID: taskID})
	e.store.Dispatch(session.UpdateConnection{Connected: true})
	e.restartPoll(taskID)
	return true
}

// StopEditing tears the session down. If the service call fails the
// session is left untouched so the caller can retry.
func (e *Editor) StopEditing(ctx context.Context, taskID string) bool {
	if e.userID == "" {
		return false
	}

	result := e.svc.StopEditSession(ctx, taskID, e.userID)
	if !result.Ok() {
		log.Printf("edit: stop session for task %s: %v", taskID, result.Err)
		if result.Err.Code == syncsvc.CodeTransport {
			e.store.Dispatch(session.UpdateConnection{Connected: false})
		}
		return false
	}

	wasCurrent := e.store.Snapshot().CurrentTaskID == taskID
	e.store.Dispatch(session.StopSession{TaskID: taskID})
	if wasCurrent {
		e.store.Dispatch(session.SetCurrentTask{TaskID: ""})
		e.stopPoll()
	}
	return true
}

// ApplyOperation sends op to the service and appends it to the local log
// only on explicit acceptance, so the log never contains a speculative
// entry. A late acceptance for a task that is no longer current drops the
// append silently.
func (e *Editor) ApplyOperation(ctx context.Context, op *collab.EditOperation) bool {
	if op == nil {
		return false
	}

	result := e.svc.ApplyOperation(ctx, *op)
	if !result.Ok() {
		log.Printf("edit: apply operation %s: %v", op.ID, result.Err)
		e.store.Dispatch(session.UpdateConnection{Connected: false})
		return false
	}
	if !result.Value {
		return false
	}

	e.store.Dispatch(session.AddOperation{Operation: *op})
	e.store.Dispatch(session.SyncComplete{At: time.Now().UTC()})
	return true
}

// UpdateCursor sends the local cursor position for the current task. The
// local editors set is untouched until the next presence poll.
func (e *Editor) UpdateCursor(ctx context.Context, field string, position int) bool {
	snap := e.store.Snapshot()
	if snap.CurrentSession == nil {
		return false
	}
	return e.tracker.UpdateCursor(ctx, snap.CurrentTaskID, field, position)
}

// ToggleTaskLock acquires (lockIt=true) or releases (lockIt=false) the
// exclusive edit lock on the current task. It reports success; a refusal
// by the arbitrator leaves local state unchanged.
func (e *Editor) ToggleTaskLock(ctx context.Context, lockIt bool) bool {
	if e.userID == "" {
		return false
	}

	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	snap := e.store.Snapshot()
	if snap.CurrentSession == nil {
		return false
	}

	result := e.svc.ToggleTaskLock(ctx, snap.CurrentTaskID, e.userID, lockIt)
	if !result.Ok() {
		log.Printf("edit: toggle lock on task %s: %v", snap.CurrentTaskID, result.Err)
		if result.Err.Code == syncsvc.CodeTransport {
			e.store.Dispatch(session.UpdateConnection{Connected: false})
		}
		return false
	}

	// Only the lock fields move; operations and editors that landed while
	// the service call was in flight stay where they are.
	e.store.Dispatch(session.SetLock{
		TaskID: snap.CurrentTaskID,
		Locked: result.Value,
		Owner:  e.userID,
	})
	return true
}

// CreateTextOperation builds a text edit for the current task, or nil when
// no session is active or no user is bound.
func (e *Editor) CreateTextOperation(field string, kind collab.OpKind, content string, position int, length ...int) *collab.EditOperation {
	snap := e.store.Snapshot()
	if e.userID == "" || snap.CurrentSession == nil {
		return nil
	}
	op := collab.NewTextOperation(snap.CurrentTaskID, e.userID, field, kind, content, position, length...)
	return &op
}

// CreateFieldOperation builds a whole-field write for the current task, or
// nil under the same conditions as CreateTextOperation.
func (e *Editor) CreateFieldOperation(field, content string) *collab.EditOperation {
	snap := e.store.Snapshot()
	if e.userID == "" || snap.CurrentSession == nil {
		return nil
	}
	op := collab.NewFieldOperation(snap.CurrentTaskID, e.userID, field, content)
	return &op
}

// Collaborators returns the other editors of the current task, never
// including the local user.
func (e *Editor) Collaborators() []collab.CollaboratorCursor {
	return e.tracker.Collaborators()
}

// IsTaskLocked reports whether the current task holds an edit lock.
func (e *Editor) IsTaskLocked() bool {
	snap := e.store.Snapshot()
	return snap.CurrentSession != nil && snap.CurrentSession.IsLocked
}

// LockOwner returns the user holding the current task's lock, or "".
func (e *Editor) LockOwner() string {
	snap := e.store.Snapshot()
	if snap.CurrentSession == nil {
		return ""
	}
	return snap.CurrentSession.LockOwner
}

// Snapshot exposes a read-only copy of the current session state.
func (e *Editor) Snapshot() session.Snapshot {
	return e.store.Snapshot()
}

// RefreshPresence runs one poll cycle immediately, outside the timer.
func (e *Editor) RefreshPresence(ctx context.Context) {
	snap := e.store.Snapshot()
	if snap.CurrentTaskID == "" {
		return
	}
	e.tracker.Refresh(ctx, snap.CurrentTaskID)
}

// Close stops the presence poll loop. It does not stop open sessions.
func (e *Editor) Close() {
	e.stopPoll()
}

func (e *Editor) restartPoll(taskID string) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.pollCancel != nil {
		e.pollCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.pollCancel = cancel
	go e.pollPresence(ctx, taskID)
}

func (e *Editor) stopPoll() {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
}

func (e *Editor) pollPresence(ctx context.Context, taskID string) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tracker.Refresh(ctx, taskID)
		}
	}
}
