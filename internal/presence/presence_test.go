package presence

import (
	"context"
	"testing"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/session"
	"pairtask/engine/internal/syncsvc"
)

func setup(t *testing.T) (*Tracker, *session.Store, *syncsvc.Memory) {
	t.Helper()
	backend := syncsvc.NewMemory()
	store := session.NewStore()
	return NewTracker(backend, store, "me"), store, backend
}

func TestRefreshReplacesEditors(t *testing.T) {
	tracker, store, backend := setup(t)
	ctx := context.Background()

	backend.StartEditSession(ctx, "task-1", "me")
	backend.StartEditSession(ctx, "task-1", "them")
	store.Dispatch(session.SetCurrentTask{TaskID: "task-1"})
	store.Dispatch(session.StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	tracker.Refresh(ctx, "task-1")
	if got := len(store.Snapshot().Collaborators); got != 2 {
		t.Fatalf("expected 2 editors after refresh, got %d", got)
	}

	// Full replace: when the backend stops reporting a user, they vanish.
	backend.StopEditSession(ctx, "task-1", "them")
	tracker.Refresh(ctx, "task-1")
	if got := len(store.Snapshot().Collaborators); got != 1 {
		t.Errorf("expected 1 editor after departure, got %d", got)
	}
}

func TestCollaboratorsExcludeLocalUser(t *testing.T) {
	tracker, store, backend := setup(t)
	ctx := context.Background()

	backend.StartEditSession(ctx, "task-1", "me")
	backend.StartEditSession(ctx, "task-1", "them")
	store.Dispatch(session.SetCurrentTask{TaskID: "task-1"})
	store.Dispatch(session.StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})
	tracker.Refresh(ctx, "task-1")

	others := tracker.Collaborators()
	if len(others) != 1 {
		t.Fatalf("expected 1 collaborator, got %d", len(others))
	}
	if others[0].UserID != "them" {
		t.Errorf("expected them, got %q", others[0].UserID)
	}
}

func TestUpdateCursorDoesNotTouchLocalState(t *testing.T) {
	tracker, store, backend := setup(t)
	ctx := context.Background()

	backend.StartEditSession(ctx, "task-1", "me")
	store.Dispatch(session.SetCurrentTask{TaskID: "task-1"})
	store.Dispatch(session.StartSession{TaskID: "task-1", Session: collab.NewEditSession("task-1")})

	if !tracker.UpdateCursor(ctx, "task-1", "notes", 4) {
		t.Fatal("expected cursor update to succeed")
	}
	if got := len(store.Snapshot().Collaborators); got != 0 {
		t.Errorf("cursor update mutated local state: %d editors", got)
	}
}

func TestUpdateCursorFailureReportsFalse(t *testing.T) {
	tracker, _, _ := setup(t)

	if tracker.UpdateCursor(context.Background(), "ghost", "notes", 4) {
		t.Error("expected cursor update to fail without a session")
	}
}
