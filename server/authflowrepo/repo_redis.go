package authflowrepo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authflow:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo keeps auth flow state in Redis so the callback can land on any instance
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisRepo(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{
		client:    client,
		keyPrefix: prefix + redisKeyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}
	data, err := json.Marshal(authState)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] marshal")
	}
	if err := r.client.Set(ctx, r.keyPrefix+state, data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] set")
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}
	data, err := r.client.Get(ctx, r.keyPrefix+state).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, errors.Wrap(err, "[RedisRepo.Get] get")
	}
	var authState AuthFlowState
	if err := json.Unmarshal(data, &authState); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Get] unmarshal")
	}
	return &authState, nil
}

func (r *RedisRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := r.client.Del(ctx, r.keyPrefix+state).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] del")
	}
	return nil
}
