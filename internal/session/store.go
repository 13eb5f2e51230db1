// Package session holds the authoritative table of active edit sessions.
// The store is mutated only through a closed set of actions; every
// transition is a total function that runs to completion atomically, so
// concurrent dispatches only ever need to be serialized, never rolled back.
package session

import (
	"sort"
	"sync"
	"time"

	"pairtask/engine/internal/collab"
)

// Action is one of the store's named state transitions.
type Action interface {
	isAction()
}

// StartSession inserts or replaces the session for a task.
type StartSession struct {
	TaskID  string
	Session collab.EditSession
}

// StopSession removes the session for a task.
type StopSession struct {
	TaskID string
}

// SetCurrentTask switches which session is exposed as the current
// projection. An empty TaskID clears it.
type SetCurrentTask struct {
	TaskID string
}

// UpdateCollaborators replaces the editors set for a task. Updates for a
// task that is not current are silently dropped.
type UpdateCollaborators struct {
	TaskID        string
	Collaborators []collab.CollaboratorCursor
}

// AddOperation appends an accepted operation to the current projection's
// log. Operations for a non-current task are silently dropped; this is
// what makes late-resolving applies after teardown safe.
type AddOperation struct {
	Operation collab.EditOperation
}

// SetLock records a backend-confirmed lock outcome on the live session,
// leaving its editors and operation log untouched.
type SetLock struct {
	TaskID string
	Locked bool
	Owner  string
}

// UpdateConnection records whether the last service call reached the
// backend.
type UpdateConnection struct {
	Connected bool
}

// SyncComplete records the time of the last successfully applied
// operation.
type SyncComplete struct {
	At time.Time
}

func (StartSession) isAction()        {}
func (StopSession) isAction()         {}
func (SetCurrentTask) isAction()      {}
func (UpdateCollaborators) isAction() {}
func (AddOperation) isAction()        {}
func (SetLock) isAction()             {}
func (UpdateConnection) isAction()    {}
func (SyncComplete) isAction()        {}

// Snapshot is a read-only copy of the store's current projection.
type Snapshot struct {
	CurrentTaskID  string
	CurrentSession *collab.EditSession
	Collaborators  []collab.CollaboratorCursor
	Operations     []collab.EditOperation
	IsConnected    bool
	LastSyncTime   time.Time
}

// Store is the single shared mutable resource of the engine.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]collab.EditSession
	currentTask string
	current     *collab.EditSession
	isConnected bool
	lastSync    time.Time
}

func NewStore() *Store {
	return &Store{sessions: map[string]collab.EditSession{}}
}

// Dispatch applies one action. Transitions never block and never fail;
// validation happens before dispatch, in the facade.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a := action.(type) {
	case StartSession:
		s.sessions[a.TaskID] = a.Session.Clone()
		if a.TaskID == s.currentTask {
			sess := a.Session.Clone()
			s.current = &sess
		}
	case StopSession:
		delete(s.sessions, a.TaskID)
		if a.TaskID == s.currentTask {
			s.current = nil
		}
	case SetCurrentTask:
		s.currentTask = a.TaskID
		s.current = nil
		if sess, ok := s.sessions[a.TaskID]; ok {
			copied := sess.Clone()
			s.current = &copied
		}
	case UpdateCollaborators:
		if a.TaskID != s.currentTask {
			return
		}
		editors := make(map[string]collab.CollaboratorCursor, len(a.Collaborators))
		for _, cursor := range a.Collaborators {
			editors[cursor.UserID] = cursor
		}
		if sess, ok := s.sessions[a.TaskID]; ok {
			sess.Editors = editors
			s.sessions[a.TaskID] = sess
		}
		if s.current != nil {
			s.current.Editors = editors
		}
	case AddOperation:
		if s.current == nil || a.Operation.TaskID != s.currentTask {
			return
		}
		s.current.Operations = append(s.current.Operations, a.Operation)
	case SetLock:
		owner := a.Owner
		if !a.Locked {
			owner = ""
		}
		if sess, ok := s.sessions[a.TaskID]; ok {
			sess.IsLocked = a.Locked
			sess.LockOwner = owner
			s.sessions[a.TaskID] = sess
		}
		if s.current != nil && a.TaskID == s.currentTask {
			s.current.IsLocked = a.Locked
			s.current.LockOwner = owner
		}
	case UpdateConnection:
		s.isConnected = a.Connected
	case SyncComplete:
		s.lastSync = a.At
	}
}

// Snapshot returns a copy of the current projection. Looking at a task
// with no active session yields an empty projection, not an error.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		CurrentTaskID: s.currentTask,
		IsConnected:   s.isConnected,
		LastSyncTime:  s.lastSync,
	}
	if s.current == nil {
		return snap
	}

	sess := s.current.Clone()
	snap.CurrentSession = &sess
	snap.Operations = sess.Operations
	snap.Collaborators = make([]collab.CollaboratorCursor, 0, len(sess.Editors))
	for _, cursor := range sess.Editors {
		snap.Collaborators = append(snap.Collaborators, cursor)
	}
	sort.Slice(snap.Collaborators, func(i, j int) bool {
		return snap.Collaborators[i].UserID < snap.Collaborators[j].UserID
	})
	return snap
}

// HasSession reports whether a session exists for taskID, current or not.
func (s *Store) HasSession(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[taskID]
	return ok
}
