package redisrepo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "authorized_client:"

var _ clients.Repo = (*RedisClientRepo)(nil)

// RedisClientRepo stores authorized clients as JSON, one key per registration and login.
// Keys expire with the session they belong to.
type RedisClientRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// New creates the repo. ttl should match the session max-inactive interval.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisClientRepo {
	return &RedisClientRepo{
		client:    client,
		keyPrefix: prefix + keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisClientRepo) key(registrationID string, authn clients.Authentication) string {
	k := r.keyPrefix + registrationID + ":" + authn.Principal
	if authn.SessionID != "" {
		k += ":" + authn.SessionID
	}
	return k
}

func (r *RedisClientRepo) Load(ctx context.Context, registrationID string, authn clients.Authentication) (*clients.AuthorizedClient, error) {
	data, err := r.client.Get(ctx, r.key(registrationID, authn)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[RedisClientRepo.Load] get")
	}
	var c clients.AuthorizedClient
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "[RedisClientRepo.Load] unmarshal")
	}
	return &c, nil
}

// Save overwrites any stored client for the same key. Concurrent saves are last-write-wins.
func (r *RedisClientRepo) Save(ctx context.Context, client *clients.AuthorizedClient, authn clients.Authentication) error {
	if client == nil {
		return errors.New("[RedisClientRepo.Save] client is required")
	}
	data, err := json.Marshal(client)
	if err != nil {
		return errors.Wrap(err, "[RedisClientRepo.Save] marshal")
	}
	if err := r.client.Set(ctx, r.key(client.RegistrationID, authn), data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisClientRepo.Save] set")
	}
	return nil
}

func (r *RedisClientRepo) Remove(ctx context.Context, registrationID string, authn clients.Authentication) error {
	if err := r.client.Del(ctx, r.key(registrationID, authn)).Err(); err != nil {
		return errors.Wrap(err, "[RedisClientRepo.Remove] del")
	}
	return nil
}
