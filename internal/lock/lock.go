// Package lock implements the accept/reject rule for exclusive task edit
// locks. The rule is pure; callers apply the outcome to whatever session
// state they own.
package lock

import "pairtask/engine/internal/collab"

// Decide reports whether a lock request by userID against sess would
// succeed. Acquiring succeeds when the task is unlocked or already locked
// by the same user (idempotent re-acquire). Releasing succeeds only for
// the current owner.
func Decide(sess collab.EditSession, userID string, release bool) bool {
	if release {
		return sess.IsLocked && sess.LockOwner == userID
	}
	return !sess.IsLocked || sess.LockOwner == userID
}

// Apply runs Decide and, on success, returns the updated session. On
// failure the session is returned unchanged. IsLocked and LockOwner always
// move together, so the lock invariant holds after every call.
func Apply(sess collab.EditSession, userID string, release bool) (collab.EditSession, bool) {
	if !Decide(sess, userID, release) {
		return sess, false
	}
	if release {
		sess.IsLocked = false
		sess.LockOwner = ""
	} else {
		sess.IsLocked = true
		sess.LockOwner = userID
	}
	return sess, true
}
