// Package presence maintains the collaborator cursor set for the task
// being edited. Cursors flow one way: local moves go straight to the
// backend, and the local view only changes when the next poll reads the
// backend's answer back. That one-poll-interval lag is the accepted
// freshness bound.
package presence

import (
	"context"
	"log"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/session"
	"pairtask/engine/internal/syncsvc"
)

type Tracker struct {
	svc    syncsvc.Service
	store  *session.Store
	userID string
}

func NewTracker(svc syncsvc.Service, store *session.Store, userID string) *Tracker {
	return &Tracker{svc: svc, store: store, userID: userID}
}

// Refresh replaces the editors set with whatever the backend currently
// reports. Full replace, not merge: a collaborator the backend no longer
// reports is gone.
func (t *Tracker) Refresh(ctx context.Context, taskID string) {
	cursors := t.svc.GetCollaborators(ctx, taskID)
	t.store.Dispatch(session.UpdateCollaborators{TaskID: taskID, Collaborators: cursors})
}

// UpdateCursor sends the local user's cursor to the backend. It does not
// touch the local editors set; that happens on the next Refresh.
func (t *Tracker) UpdateCursor(ctx context.Context, taskID, field string, position int) bool {
	result := t.svc.UpdateCursor(ctx, taskID, t.userID, field, position)
	if !result.Ok() {
		log.Printf("presence: update cursor for task %s: %v", taskID, result.Err)
		return false
	}
	return true
}

// Collaborators returns the current editors excluding the local user, so
// callers never have to filter themselves out.
func (t *Tracker) Collaborators() []collab.CollaboratorCursor {
	all := t.store.Snapshot().Collaborators
	out := make([]collab.CollaboratorCursor, 0, len(all))
	for _, cursor := range all {
		if cursor.UserID == t.userID {
			continue
		}
		out = append(out, cursor)
	}
	return out
}
