package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pairtask/engine/internal/collab"
)

// RedisStore is the cross-process backend. Presence staleness is the
// cursor key TTL: a collaborator whose cursor has expired is no longer
// "currently present". Lock arbitration rides on SETNX, so two devices
// racing for the same task resolve here, not in the client.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	sessionTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, sessionTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, sessionTTL), nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, sessionTTL time.Duration) *RedisStore {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Second
	}
	return &RedisStore{
		client:     client,
		prefix:     "collab:",
		sessionTTL: sessionTTL,
	}
}

func (s *RedisStore) editorsKey(taskID string) string {
	return s.prefix + "editors:" + taskID
}

func (s *RedisStore) cursorKey(taskID, userID string) string {
	return s.prefix + "cursor:" + taskID + ":" + userID
}

func (s *RedisStore) lockKey(taskID string) string {
	return s.prefix + "lock:" + taskID
}

func (s *RedisStore) opsKey(taskID string) string {
	return s.prefix + "ops:" + taskID
}

func (s *RedisStore) StartEditSession(ctx context.Context, taskID, userID string) Result[collab.EditSession] {
	cursor := collab.CollaboratorCursor{UserID: userID, LastSeen: time.Now().UTC()}
	if err := s.client.SAdd(ctx, s.editorsKey(taskID), userID).Err(); err != nil {
		return Failure[collab.EditSession](CodeTransport, "join session: %v", err)
	}
	if err := s.writeCursor(ctx, taskID, cursor); err != nil {
		return Failure[collab.EditSession](CodeTransport, "write cursor: %v", err)
	}

	sess, err := s.loadSession(ctx, taskID)
	if err != nil {
		return Failure[collab.EditSession](CodeTransport, "load session: %v", err)
	}
	return OK(sess)
}

func (s *RedisStore) StopEditSession(ctx context.Context, taskID, userID string) Result[None] {
	removed, err := s.client.SRem(ctx, s.editorsKey(taskID), userID).Result()
	if err != nil {
		return Failure[None](CodeTransport, "leave session: %v", err)
	}
	if removed == 0 {
		return Failure[None](CodeNoSession, "no session for task %s", taskID)
	}
	if err := s.client.Del(ctx, s.cursorKey(taskID, userID)).Err(); err != nil {
		return Failure[None](CodeTransport, "drop cursor: %v", err)
	}

	// Release the lock if the departing editor holds it.
	owner, err := s.client.Get(ctx, s.lockKey(taskID)).Result()
	if err != nil && err != redis.Nil {
		return Failure[None](CodeTransport, "read lock: %v", err)
	}
	if err == nil && owner == userID {
		if err := s.client.Del(ctx, s.lockKey(taskID)).Err(); err != nil {
			return Failure[None](CodeTransport, "release lock: %v", err)
		}
	}

	remaining, err := s.client.SCard(ctx, s.editorsKey(taskID)).Result()
	if err == nil && remaining == 0 {
		s.client.Del(ctx, s.opsKey(taskID), s.lockKey(taskID), s.editorsKey(taskID))
	}
	return OK(None{})
}

func (s *RedisStore) ApplyOperation(ctx context.Context, op collab.EditOperation) Result[bool] {
	if err := op.Validate(); err != nil {
		return Failure[bool](CodeInvalid, "%v", err)
	}

	exists, err := s.client.Exists(ctx, s.editorsKey(op.TaskID)).Result()
	if err != nil {
		return Failure[bool](CodeTransport, "check session: %v", err)
	}
	if exists == 0 {
		return Failure[bool](CodeNoSession, "no session for task %s", op.TaskID)
	}

	owner, err := s.client.Get(ctx, s.lockKey(op.TaskID)).Result()
	if err != nil && err != redis.Nil {
		return Failure[bool](CodeTransport, "read lock: %v", err)
	}
	if err == nil && owner != op.UserID {
		return OK(false)
	}

	payload, err := json.Marshal(op)
	if err != nil {
		return Failure[bool](CodeInvalid, "marshal operation: %v", err)
	}
	if err := s.client.RPush(ctx, s.opsKey(op.TaskID), payload).Err(); err != nil {
		return Failure[bool](CodeTransport, "append operation: %v", err)
	}
	s.client.Expire(ctx, s.cursorKey(op.TaskID, op.UserID), s.sessionTTL)
	return OK(true)
}

func (s *RedisStore) UpdateCursor(ctx context.Context, taskID, userID, field string, position int) Result[None] {
	member, err := s.client.SIsMember(ctx, s.editorsKey(taskID), userID).Result()
	if err != nil {
		return Failure[None](CodeTransport, "check session: %v", err)
	}
	if !member {
		return Failure[None](CodeNoSession, "no session for task %s", taskID)
	}
	cursor := collab.CollaboratorCursor{
		UserID:   userID,
		Field:    field,
		Position: position,
		LastSeen: time.Now().UTC(),
	}
	if err := s.writeCursor(ctx, taskID, cursor); err != nil {
		return Failure[None](CodeTransport, "write cursor: %v", err)
	}
	return OK(None{})
}

func (s *RedisStore) ToggleTaskLock(ctx context.Context, taskID, userID string, lockIt bool) Result[bool] {
	key := s.lockKey(taskID)
	if lockIt {
		acquired, err := s.client.SetNX(ctx, key, userID, s.sessionTTL).Result()
		if err != nil {
			return Failure[bool](CodeTransport, "acquire lock: %v", err)
		}
		if acquired {
			return OK(true)
		}
		owner, err := s.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return Failure[bool](CodeTransport, "read lock: %v", err)
		}
		if owner == userID {
			// Idempotent re-acquire refreshes the hold.
			s.client.Expire(ctx, key, s.sessionTTL)
			return OK(true)
		}
		return Failure[bool](CodeLocked, "task %s is locked by %s", taskID, owner)
	}

	owner, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Failure[bool](CodeNotOwner, "task %s is not locked", taskID)
	}
	if err != nil {
		return Failure[bool](CodeTransport, "read lock: %v", err)
	}
	if owner != userID {
		return Failure[bool](CodeNotOwner, "task %s is not locked by %s", taskID, userID)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return Failure[bool](CodeTransport, "release lock: %v", err)
	}
	return OK(false)
}

func (s *RedisStore) GetCollaborators(ctx context.Context, taskID string) []collab.CollaboratorCursor {
	members, err := s.client.SMembers(ctx, s.editorsKey(taskID)).Result()
	if err != nil {
		return nil
	}

	out := make([]collab.CollaboratorCursor, 0, len(members))
	for _, userID := range members {
		raw, err := s.client.Get(ctx, s.cursorKey(taskID, userID)).Result()
		if err == redis.Nil {
			// Cursor expired: the backend no longer considers this user
			// present.
			s.client.SRem(ctx, s.editorsKey(taskID), userID)
			continue
		}
		if err != nil {
			continue
		}
		var cursor collab.CollaboratorCursor
		if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
			continue
		}
		out = append(out, cursor)
	}
	return out
}

// Operations returns the accepted log for a task, in acceptance order.
func (s *RedisStore) Operations(ctx context.Context, taskID string) ([]collab.EditOperation, error) {
	raw, err := s.client.LRange(ctx, s.opsKey(taskID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read operation log: %w", err)
	}
	out := make([]collab.EditOperation, 0, len(raw))
	for _, item := range raw {
		var op collab.EditOperation
		if err := json.Unmarshal([]byte(item), &op); err != nil {
			return nil, fmt.Errorf("unmarshal operation: %w", err)
		}
		out = append(out, op)
	}
	return out, nil
}

func (s *RedisStore) writeCursor(ctx context.Context, taskID string, cursor collab.CollaboratorCursor) error {
	payload, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.cursorKey(taskID, cursor.UserID), payload, s.sessionTTL).Err()
}

func (s *RedisStore) loadSession(ctx context.Context, taskID string) (collab.EditSession, error) {
	sess := collab.NewEditSession(taskID)

	for _, cursor := range s.GetCollaborators(ctx, taskID) {
		sess.Editors[cursor.UserID] = cursor
	}

	owner, err := s.client.Get(ctx, s.lockKey(taskID)).Result()
	if err != nil && err != redis.Nil {
		return sess, err
	}
	if err == nil {
		sess.IsLocked = true
		sess.LockOwner = owner
	}

	ops, err := s.Operations(ctx, taskID)
	if err != nil {
		return sess, err
	}
	sess.Operations = ops
	return sess, nil
}

// Ping checks Redis reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
