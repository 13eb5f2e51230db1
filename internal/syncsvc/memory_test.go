package syncsvc

import (
	"context"
	"testing"

	"pairtask/engine/internal/collab"
)

func TestMemoryStartCreatesSession(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	result := m.StartEditSession(ctx, "task-1", "u1")
	if !result.Ok() {
		t.Fatalf("start failed: %v", result.Err)
	}
	sess := result.Value
	if sess.TaskID != "task-1" {
		t.Errorf("expected task-1, got %q", sess.TaskID)
	}
	if _, ok := sess.Editors["u1"]; !ok {
		t.Error("expected u1 in the editors set")
	}
	if sess.IsLocked {
		t.Error("new session must be unlocked")
	}
}

func TestMemoryStartIsIdempotentPerUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.StartEditSession(ctx, "task-1", "u1")
	result := m.StartEditSession(ctx, "task-1", "u1")
	if !result.Ok() {
		t.Fatalf("second start failed: %v", result.Err)
	}
	if len(result.Value.Editors) != 1 {
		t.Errorf("expected one editor entry, got %d", len(result.Value.Editors))
	}
}

func TestMemoryStopUnknownTaskFails(t *testing.T) {
	m := NewMemory()

	result := m.StopEditSession(context.Background(), "ghost", "u1")
	if result.Ok() {
		t.Fatal("expected failure for unknown task")
	}
	if result.Err.Code != CodeNoSession {
		t.Errorf("expected %s, got %s", CodeNoSession, result.Err.Code)
	}
}

func TestMemoryStopReleasesHeldLock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.StartEditSession(ctx, "task-1", "u1")
	m.StartEditSession(ctx, "task-1", "u2")
	if result := m.ToggleTaskLock(ctx, "task-1", "u1", true); !result.Ok() {
		t.Fatalf("lock failed: %v", result.Err)
	}

	if result := m.StopEditSession(ctx, "task-1", "u1"); !result.Ok() {
		t.Fatalf("stop failed: %v", result.Err)
	}

	// u2 can now take the lock.
	result := m.ToggleTaskLock(ctx, "task-1", "u2", true)
	if !result.Ok() {
		t.Errorf("expected lock to be free after owner left: %v", result.Err)
	}
}

func TestMemoryApplyRequiresSession(t *testing.T) {
	m := NewMemory()

	op := collab.NewFieldOperation("ghost", "u1", "title", "x")
	result := m.ApplyOperation(context.Background(), op)
	if result.Ok() {
		t.Fatal("expected failure without a session")
	}
	if result.Err.Code != CodeNoSession {
		t.Errorf("expected %s, got %s", CodeNoSession, result.Err.Code)
	}
}

func TestMemoryApplyValidatesStructure(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.StartEditSession(ctx, "task-1", "u1")

	op := collab.NewTextOperation("task-1", "u1", "title", collab.OpDelete, "", 0)
	result := m.ApplyOperation(ctx, op)
	if result.Ok() {
		t.Fatal("expected structural validation failure")
	}
	if result.Err.Code != CodeInvalid {
		t.Errorf("expected %s, got %s", CodeInvalid, result.Err.Code)
	}
}

func TestMemoryLockGatesOtherUsersEdits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.StartEditSession(ctx, "task-1", "u1")
	m.StartEditSession(ctx, "task-1", "u2")
	m.ToggleTaskLock(ctx, "task-1", "u1", true)

	blocked := m.ApplyOperation(ctx, collab.NewFieldOperation("task-1", "u2", "title", "x"))
	if !blocked.Ok() {
		t.Fatalf("expected a definite answer, got %v", blocked.Err)
	}
	if blocked.Value {
		t.Error("expected the locked task to reject u2's edit")
	}

	allowed := m.ApplyOperation(ctx, collab.NewFieldOperation("task-1", "u1", "title", "x"))
	if !allowed.Ok() || !allowed.Value {
		t.Error("expected the lock owner's edit to be accepted")
	}

	if ops := m.Operations("task-1"); len(ops) != 1 {
		t.Errorf("expected one accepted operation, got %d", len(ops))
	}
}

func TestMemoryGetCollaboratorsUnknownTask(t *testing.T) {
	m := NewMemory()
	if cursors := m.GetCollaborators(context.Background(), "ghost"); len(cursors) != 0 {
		t.Errorf("expected no collaborators, got %d", len(cursors))
	}
}

func TestMemoryCursorRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.StartEditSession(ctx, "task-1", "u1")

	if result := m.UpdateCursor(ctx, "task-1", "u1", "notes", 12); !result.Ok() {
		t.Fatalf("cursor update failed: %v", result.Err)
	}

	cursors := m.GetCollaborators(ctx, "task-1")
	if len(cursors) != 1 {
		t.Fatalf("expected one cursor, got %d", len(cursors))
	}
	if cursors[0].Field != "notes" || cursors[0].Position != 12 {
		t.Errorf("unexpected cursor %+v", cursors[0])
	}
}
