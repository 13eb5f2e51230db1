package session

import (
	"testing"
	"time"

	"pairtask/engine/internal/collab"
)

func TestStartSessionSetsProjectionForCurrentTask(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	snap := s.Snapshot()
	if snap.CurrentSession == nil {
		t.Fatal("expected a current session projection")
	}
	if snap.CurrentSession.TaskID != "task-1" {
		t.Errorf("expected task-1, got %q", snap.CurrentSession.TaskID)
	}
}

func TestStartSessionForOtherTaskLeavesProjectionAlone(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})
	s.Dispatch(StartSession{TaskID: "task-2", Session: collab.NewEditSession("task-2")})

	snap := s.Snapshot()
	if snap.CurrentSession.TaskID != "task-1" {
		t.Errorf("projection switched to %q", snap.CurrentSession.TaskID)
	}
	if !s.HasSession("task-2") {
		t.Error("expected task-2 session to exist internally")
	}
}

func TestSetCurrentTaskUnknownYieldsEmptyProjection(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "ghost"})

	snap := s.Snapshot()
	if snap.CurrentTaskID != "ghost" {
		t.Errorf("expected current task ghost, got %q", snap.CurrentTaskID)
	}
	if snap.CurrentSession != nil {
		t.Error("expected empty projection for a task with no session")
	}
	if len(snap.Collaborators) != 0 || len(snap.Operations) != 0 {
		t.Error("expected empty collaborator and operation projections")
	}
}

func TestStopSessionClearsProjection(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})
	s.Dispatch(StopSession{TaskID: "task-1"})

	if s.HasSession("task-1") {
		t.Error("expected task-1 session to be removed")
	}
	if s.Snapshot().CurrentSession != nil {
		t.Error("expected projection to be cleared")
	}
}

func TestUpdateCollaboratorsReplacesSet(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	sess := collab.NewEditSession("task-1")
	sess.Editors["u1"] = collab.CollaboratorCursor{UserID: "u1", Field: "title"}
	s.Dispatch(StartSession{TaskID: "task-1", Session: sess})

	// Full replace: u1 disappears, u2 and u3 arrive.
	s.Dispatch(UpdateCollaborators{TaskID: "task-1", Collaborators: []collab.CollaboratorCursor{
		{UserID: "u2", Field: "notes", Position: 4},
		{UserID: "u3", Field: "title", Position: 1},
	}})

	snap := s.Snapshot()
	if len(snap.Collaborators) != 2 {
		t.Fatalf("expected 2 collaborators, got %d", len(snap.Collaborators))
	}
	if snap.Collaborators[0].UserID != "u2" || snap.Collaborators[1].UserID != "u3" {
		t.Errorf("unexpected collaborator set: %+v", snap.Collaborators)
	}
}

func TestUpdateCollaboratorsForNonCurrentTaskDropped(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	s.Dispatch(UpdateCollaborators{TaskID: "task-2", Collaborators: []collab.CollaboratorCursor{
		{UserID: "u9"},
	}})

	if len(s.Snapshot().Collaborators) != 0 {
		t.Error("stale update for a non-current task must be dropped")
	}
}

func TestAddOperationAppendsInOrder(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	first := collab.NewFieldOperation("task-1", "u1", "title", "a")
	second := collab.NewFieldOperation("task-1", "u1", "title", "b")
	s.Dispatch(AddOperation{Operation: first})
	s.Dispatch(AddOperation{Operation: second})

	ops := s.Snapshot().Operations
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != first.ID || ops[1].ID != second.ID {
		t.Error("operations out of acceptance order")
	}
}

func TestAddOperationForNonCurrentTaskDropped(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	s.Dispatch(AddOperation{Operation: collab.NewFieldOperation("task-2", "u1", "title", "x")})

	if len(s.Snapshot().Operations) != 0 {
		t.Error("operation for a non-current task must be dropped")
	}
}

func TestAddOperationWithoutSessionDropped(t *testing.T) {
	s := NewStore()
	s.Dispatch(AddOperation{Operation: collab.NewFieldOperation("task-1", "u1", "title", "x")})

	if len(s.Snapshot().Operations) != 0 {
		t.Error("operation with no current session must be dropped")
	}
}

func TestSetLockMovesOnlyLockFields(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	sess := collab.NewEditSession("task-1")
	sess.Editors["u2"] = collab.CollaboratorCursor{UserID: "u2", Field: "notes"}
	s.Dispatch(StartSession{TaskID: "task-1", Session: sess})
	op := collab.NewFieldOperation("task-1", "u1", "title", "x")
	s.Dispatch(AddOperation{Operation: op})

	s.Dispatch(SetLock{TaskID: "task-1", Locked: true, Owner: "u1"})

	snap := s.Snapshot()
	if !snap.CurrentSession.IsLocked || snap.CurrentSession.LockOwner != "u1" {
		t.Fatalf("expected lock held by u1, got %+v", snap.CurrentSession)
	}
	if len(snap.Operations) != 1 || snap.Operations[0].ID != op.ID {
		t.Error("locking dropped the operation log")
	}
	if len(snap.Collaborators) != 1 {
		t.Error("locking dropped the editors set")
	}

	// Release clears the owner regardless of what the action carries.
	s.Dispatch(SetLock{TaskID: "task-1", Locked: false, Owner: "u1"})
	snap = s.Snapshot()
	if snap.CurrentSession.IsLocked || snap.CurrentSession.LockOwner != "" {
		t.Errorf("expected unlocked with no owner, got %+v", snap.CurrentSession)
	}
	if len(snap.Operations) != 1 {
		t.Error("unlocking dropped the operation log")
	}
}

func TestSetLockForNonCurrentTaskLeavesProjectionAlone(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})
	s.Dispatch(StartSession{TaskID: "task-2", Session: collab.NewEditSession("task-2")})

	s.Dispatch(SetLock{TaskID: "task-2", Locked: true, Owner: "u2"})

	if s.Snapshot().CurrentSession.IsLocked {
		t.Error("lock on another task leaked into the projection")
	}
	s.Dispatch(SetCurrentTask{TaskID: "task-2"})
	if snap := s.Snapshot(); !snap.CurrentSession.IsLocked || snap.CurrentSession.LockOwner != "u2" {
		t.Errorf("expected task-2 locked by u2, got %+v", snap.CurrentSession)
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	s := NewStore()

	s.Dispatch(UpdateConnection{Connected: true})
	if !s.Snapshot().IsConnected {
		t.Error("expected connected")
	}

	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	s.Dispatch(SyncComplete{At: at})
	if !s.Snapshot().LastSyncTime.Equal(at) {
		t.Errorf("expected last sync %v, got %v", at, s.Snapshot().LastSyncTime)
	}

	s.Dispatch(UpdateConnection{Connected: false})
	if s.Snapshot().IsConnected {
		t.Error("expected disconnected")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	snap := s.Snapshot()
	snap.CurrentSession.Editors["intruder"] = collab.CollaboratorCursor{UserID: "intruder"}

	if len(s.Snapshot().Collaborators) != 0 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestSwitchingCurrentTaskSwapsProjection(t *testing.T) {
	s := NewStore()
	one := collab.NewEditSession("task-1")
	one.Editors["u1"] = collab.CollaboratorCursor{UserID: "u1"}
	two := collab.NewEditSession("task-2")
	two.IsLocked = true
	two.LockOwner = "u2"

	s.Dispatch(SetCurrentTask{TaskID: "task-1"})
	s.Dispatch(StartSession{TaskID: "task-1", Session: one})
	s.Dispatch(StartSession{TaskID: "task-2", Session: two})

	s.Dispatch(SetCurrentTask{TaskID: "task-2"})
	snap := s.Snapshot()
	if snap.CurrentSession == nil || snap.CurrentSession.LockOwner != "u2" {
		t.Fatalf("expected task-2 projection, got %+v", snap.CurrentSession)
	}

	s.Dispatch(SetCurrentTask{TaskID: ""})
	if s.Snapshot().CurrentSession != nil {
		t.Error("expected cleared projection after unsetting current task")
	}
}
