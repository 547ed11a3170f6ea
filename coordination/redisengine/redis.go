// Package redisengine implements the coordination.Store contract on Redis.
//
// Locks map to SET NX with expiry, reservations map to SADD/SREM. Both rely
// on Redis command atomicity, so no scripting is needed.
package redisengine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNilRedisClient = errors.New("redis client must not be nil")

const (
	logMsgSetIfAbsentFailed  = "redis setnx failed"
	logMsgDeleteFailed       = "redis del failed"
	logMsgAddMemberFailed    = "redis sadd failed"
	logMsgRemoveMemberFailed = "redis srem failed"
	logAttrError             = "error"
	logAttrKey               = "key"
)

// Logger interface for operational logging of redis failures.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store implements coordination.Store on a go-redis client.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key the Store touches, e.g. per deployment.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a coordination store backed by the given Redis client.
func NewStore(client redis.UniversalClient, options ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}

	store := &Store{client: client}

	for _, option := range options {
		option(store)
	}

	return store, nil
}

// SetIfAbsent implements coordination.Store using SET NX with expiry.
func (s *Store) SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, s.keyPrefix+key, value, ttl).Result()
	if err != nil {
		s.logError(logMsgSetIfAbsentFailed, key, err)
		return false, err
	}

	return created, nil
}

// Delete implements coordination.Store using DEL.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		s.logError(logMsgDeleteFailed, key, err)
		return err
	}

	return nil
}

// AddMember implements coordination.Store using SADD.
// A zero added-count means the value was already a member.
func (s *Store) AddMember(ctx context.Context, setKey string, value string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.keyPrefix+setKey, value).Result()
	if err != nil {
		s.logError(logMsgAddMemberFailed, setKey, err)
		return false, err
	}

	return added > 0, nil
}

// RemoveMember implements coordination.Store using SREM.
func (s *Store) RemoveMember(ctx context.Context, setKey string, value string) error {
	if err := s.client.SRem(ctx, s.keyPrefix+setKey, value).Err(); err != nil {
		s.logError(logMsgRemoveMemberFailed, setKey, err)
		return err
	}

	return nil
}

func (s *Store) logError(msg string, key string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, logAttrError, err.Error(), logAttrKey, key)
	}
}
