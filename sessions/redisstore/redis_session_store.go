// Package redisstore is the Redis backed, principal indexed session store.
//
// Layout:
//
//	{prefix}session:{id}                  JSON session, TTL = max inactive interval
//	{prefix}session:principal:{principal} SET of session ids
//
// Index entries whose session key has expired are pruned on read.
package redisstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeyPrefix   = "session:"
	principalKeyPrefix = "session:principal:"

	maxTouchAttempts = 3
)

var _ sessions.IndexedRepo = (*RedisSessionStore)(nil)

type RedisSessionStore struct {
	client    redis.UniversalClient
	keyPrefix string
	nowTime   func() time.Time
}

type StoreOption func(*RedisSessionStore)

// WithNowTime sets the now time function used for TTLs (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *RedisSessionStore) {
		s.nowTime = nowFunc
	}
}

// New creates a store on an existing client. Works with miniredis in tests.
func New(client redis.UniversalClient, keyPrefix string, options ...StoreOption) *RedisSessionStore {
	s := &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.keyPrefix + sessionKeyPrefix + id
}

func (s *RedisSessionStore) principalKey(principal string) string {
	return s.keyPrefix + principalKeyPrefix + principal
}

func (s *RedisSessionStore) ttlOf(session *sessions.Session) time.Duration {
	if session.MaxInactiveInterval <= 0 {
		return 0
	}
	return session.ExpiresAt().Sub(s.nowTime())
}

func (s *RedisSessionStore) Save(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return pkgerrors.New("[RedisSessionStore.Save] session id is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(err, "[RedisSessionStore.Save] marshal")
	}
	ttl := s.ttlOf(session)
	if session.MaxInactiveInterval > 0 && ttl <= 0 {
		return pkgerrors.Wrap(errors.ErrSessionExpired, "[RedisSessionStore.Save]")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, ttl)
		if session.Principal != "" {
			pipe.SAdd(ctx, s.principalKey(session.Principal), session.ID)
			if session.MaxInactiveInterval > 0 {
				// no member outlives a full interval from now
				pipe.Expire(ctx, s.principalKey(session.Principal), session.MaxInactiveInterval)
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(err, "[RedisSessionStore.Save] pipeline")
	}
	return nil
}

func (s *RedisSessionStore) FindByID(ctx context.Context, sessionID string) (*sessions.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, pkgerrors.Wrap(err, "[RedisSessionStore.FindByID] get")
	}
	var session sessions.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisSessionStore.FindByID] unmarshal")
	}
	return &session, nil
}

// Touch moves LastAccessedAt and restarts the TTL. The write only lands if
// the session key still exists and was not changed since it was read, so a
// concurrent delete is never undone.
func (s *RedisSessionStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	key := s.sessionKey(sessionID)
	touch := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if stderrors.Is(err, redis.Nil) {
				return errors.ErrSessionNotFound
			}
			return pkgerrors.Wrap(err, "[RedisSessionStore.Touch] get")
		}
		var session sessions.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return pkgerrors.Wrap(err, "[RedisSessionStore.Touch] unmarshal")
		}
		session.LastAccessedAt = at
		ttl := s.ttlOf(&session)
		if session.MaxInactiveInterval > 0 && ttl <= 0 {
			return pkgerrors.Wrap(errors.ErrSessionExpired, "[RedisSessionStore.Touch]")
		}
		if data, err = json.Marshal(&session); err != nil {
			return pkgerrors.Wrap(err, "[RedisSessionStore.Touch] marshal")
		}

		var set *redis.StatusCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			set = pipe.SetArgs(ctx, key, data, redis.SetArgs{Mode: "XX", TTL: ttl})
			if session.Principal != "" && session.MaxInactiveInterval > 0 {
				// EXPIRE never creates the index, it only keeps a live one around
				pipe.Expire(ctx, s.principalKey(session.Principal), session.MaxInactiveInterval)
			}
			return nil
		})
		if stderrors.Is(err, redis.Nil) || (set != nil && stderrors.Is(set.Err(), redis.Nil)) {
			return errors.ErrSessionNotFound
		}
		return err
	}

	for attempt := 0; attempt < maxTouchAttempts; attempt++ {
		err := s.client.Watch(ctx, touch, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !stderrors.Is(err, errors.ErrSessionNotFound) && !stderrors.Is(err, errors.ErrSessionExpired) {
			return pkgerrors.Wrap(err, "[RedisSessionStore.Touch]")
		}
		return err
	}
	return pkgerrors.Wrapf(redis.TxFailedErr, "[RedisSessionStore.Touch] %s changed on every attempt", sessionID)
}

// DeleteByID removes the session and its index entry. A missing session is not an error.
// An unreadable session is still deleted; its index entry is pruned on the next lookup.
func (s *RedisSessionStore) DeleteByID(ctx context.Context, sessionID string) error {
	key := s.sessionKey(sessionID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil
		}
		return pkgerrors.Wrap(err, "[RedisSessionStore.DeleteByID] get")
	}
	var session sessions.Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("deleting unreadable session")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if session.Principal != "" {
			pipe.SRem(ctx, s.principalKey(session.Principal), sessionID)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(err, "[RedisSessionStore.DeleteByID] pipeline")
	}
	return nil
}

func (s *RedisSessionStore) FindByPrincipalName(ctx context.Context, principal string) (map[string]*sessions.Session, error) {
	ids, err := s.client.SMembers(ctx, s.principalKey(principal)).Result()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return nil, pkgerrors.Wrap(err, "[RedisSessionStore.FindByPrincipalName] smembers")
	}
	out := make(map[string]*sessions.Session, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisSessionStore.FindByPrincipalName] mget")
	}

	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var session sessions.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			log.Err(err).Str("session_id", ids[i]).Msg("skipping unreadable session")
			continue
		}
		out[session.ID] = &session
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.principalKey(principal), stale...).Err(); err != nil {
			log.Warn().Err(err).Str("principal", principal).Msg("failed to prune session index")
		}
	}
	return out, nil
}
