// File: gourdianauth.registry.redis.imp.go

package gourdianauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "gourdianauth:"
	sessionKeySegment     = "session:"
	principalKeySegment   = "principal:"
)

// createSessionScript evicts the principal's previous session and stores the new one.
//
// KEYS[1] new session key, KEYS[2] principal key
// ARGV[1] session key prefix, ARGV[2] new token hash, ARGV[3] principal id,
// ARGV[4] created at (unix nanos), ARGV[5] expires at (unix nanos), ARGV[6] ttl (ms)
const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local previous = redis.call("GET", KEYS[2])
if previous then
  redis.call("DEL", ARGV[1] .. previous)
end
redis.call("HSET", KEYS[1], "pid", ARGV[3], "cat", ARGV[4], "exp", ARGV[5])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[6])
return 1
`

// consumeSessionScript deletes a session and returns its fields, or nil when absent.
//
// KEYS[1] session key
// ARGV[1] principal key prefix, ARGV[2] token hash
const consumeSessionScript = `
local fields = redis.call("HMGET", KEYS[1], "pid", "cat", "exp")
if not fields[1] then
  return false
end
redis.call("DEL", KEYS[1])
local principalKey = ARGV[1] .. fields[1]
if redis.call("GET", principalKey) == ARGV[2] then
  redis.call("DEL", principalKey)
end
return fields
`

// revokePrincipalScript deletes the principal's session and index entry.
//
// KEYS[1] principal key
// ARGV[1] session key prefix
const revokePrincipalScript = `
local current = redis.call("GET", KEYS[1])
if current then
  redis.call("DEL", ARGV[1] .. current)
  redis.call("DEL", KEYS[1])
end
return 1
`

var (
	createSessionLua   = redis.NewScript(createSessionScript)
	consumeSessionLua  = redis.NewScript(consumeSessionScript)
	revokePrincipalLua = redis.NewScript(revokePrincipalScript)
)

// RedisSessionRegistry is a SessionRegistry shared by several processes through
// Redis. Every mutation runs as a single Lua script, so eviction plus insertion
// and read plus delete are atomic on the server.
type RedisSessionRegistry struct {
	client          *redis.Client
	sessionPrefix   string
	principalPrefix string

	logger   *slog.Logger
	now      func() time.Time
	metrics  *Metrics
	newToken func() (string, error)
}

var _ SessionRegistry = (*RedisSessionRegistry)(nil)

// NewRedisSessionRegistry creates a Redis-backed registry. keyPrefix namespaces
// all keys (default "gourdianauth:"). The client stays owned by the caller.
//
// The scripts derive the evicted session and principal key names from keyPrefix
// at run time, so every key must live on one node. This holds for standalone
// Redis and Sentinel. Behind a cluster proxy, give keyPrefix a hash tag such as
// "{gourdianauth}:" so all keys share a slot.
func NewRedisSessionRegistry(client *redis.Client, keyPrefix string, opts ...Option) (*RedisSessionRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	o := buildOptions(opts)
	return &RedisSessionRegistry{
		client:          client,
		sessionPrefix:   keyPrefix + sessionKeySegment,
		principalPrefix: keyPrefix + principalKeySegment,
		logger:          o.logger,
		now:             o.now,
		metrics:         o.metrics,
		newToken:        o.newToken,
	}, nil
}

func (r *RedisSessionRegistry) sessionKey(tokenHash string) string {
	return r.sessionPrefix + tokenHash
}

func (r *RedisSessionRegistry) principalKey(principalID uuid.UUID) string {
	return r.principalPrefix + principalID.String()
}

// CreateSession replaces the principal's session with a new one.
func (r *RedisSessionRegistry) CreateSession(ctx context.Context, principalID uuid.UUID, ttl time.Duration) (*RefreshSession, error) {
	if err := validateSessionArgs(principalID, ttl); err != nil {
		return nil, err
	}

	token, err := r.newToken()
	if err != nil {
		return nil, err
	}
	tokenHash := hashToken(token)

	now := r.now().UTC()
	session := &RefreshSession{
		Token:       token,
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	ttlMillis := ttl.Milliseconds()
	if ttlMillis < 1 {
		ttlMillis = 1
	}

	created, err := createSessionLua.Run(ctx, r.client,
		[]string{r.sessionKey(tokenHash), r.principalKey(principalID)},
		r.sessionPrefix,
		tokenHash,
		principalID.String(),
		strconv.FormatInt(session.CreatedAt.UnixNano(), 10),
		strconv.FormatInt(session.ExpiresAt.UnixNano(), 10),
		ttlMillis,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if created == 0 {
		return nil, ErrTokenCollision
	}

	return session, nil
}

// Consume atomically deletes the session for token and returns it if still live.
func (r *RedisSessionRegistry) Consume(ctx context.Context, token string) (*RefreshSession, error) {
	if !acceptableToken(token) {
		return nil, ErrSessionNotFound
	}
	tokenHash := hashToken(token)

	result, err := consumeSessionLua.Run(ctx, r.client,
		[]string{r.sessionKey(tokenHash)},
		r.principalPrefix,
		tokenHash,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	session, err := decodeSessionFields(token, result)
	if err != nil {
		return nil, err
	}
	if session.expiredAt(r.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Lookup reads the session for token without deleting it.
func (r *RedisSessionRegistry) Lookup(ctx context.Context, token string) (*RefreshSession, error) {
	if !acceptableToken(token) {
		return nil, ErrSessionNotFound
	}

	result, err := r.client.HMGet(ctx, r.sessionKey(hashToken(token)), "pid", "cat", "exp").Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(result) == 0 || result[0] == nil {
		return nil, ErrSessionNotFound
	}

	session, err := decodeSessionFields(token, result)
	if err != nil {
		return nil, err
	}
	if session.expiredAt(r.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// RevokePrincipal removes the principal's session.
func (r *RedisSessionRegistry) RevokePrincipal(ctx context.Context, principalID uuid.UUID) error {
	err := revokePrincipalLua.Run(ctx, r.client,
		[]string{r.principalKey(principalID)},
		r.sessionPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Purge removes sessions that are expired at now but still present, which
// happens when the registry clock runs ahead of the Redis server clock.
func (r *RedisSessionRegistry) Purge(ctx context.Context, now time.Time) (int, error) {
	var cursor uint64
	const batchSize = 100

	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("context canceled: %w", err)
		}

		keys, newCursor, err := r.client.Scan(ctx, cursor, r.sessionPrefix+"*", batchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan error: %w", err)
		}

		for _, key := range keys {
			expRaw, err := r.client.HGet(ctx, key, "exp").Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				r.logger.Warn("failed to read refresh session expiry", slog.String("key", key), slog.String("error", err.Error()))
				continue
			}

			expNanos, err := strconv.ParseInt(expRaw, 10, 64)
			if err == nil && now.Before(time.Unix(0, expNanos)) {
				continue
			}

			tokenHash := strings.TrimPrefix(key, r.sessionPrefix)
			err = consumeSessionLua.Run(ctx, r.client, []string{key}, r.principalPrefix, tokenHash).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				return removed, fmt.Errorf("redis delete error: %w", err)
			}
			if err == nil {
				removed++
			}
		}

		if newCursor == 0 {
			break
		}
		cursor = newCursor
	}

	r.metrics.sessionsPurged(removed)
	return removed, nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (r *RedisSessionRegistry) Close() error {
	return nil
}

// decodeSessionFields builds a session from the pid, cat and exp hash fields.
func decodeSessionFields(token string, fields []interface{}) (*RefreshSession, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("corrupt refresh session: %d fields", len(fields))
	}

	values := make([]string, len(fields))
	for i, field := range fields {
		s, ok := field.(string)
		if !ok {
			return nil, fmt.Errorf("corrupt refresh session: field %d is %T", i, field)
		}
		values[i] = s
	}

	principalID, err := uuid.Parse(values[0])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh session principal: %w", err)
	}
	createdNanos, err := strconv.ParseInt(values[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh session created at: %w", err)
	}
	expiresNanos, err := strconv.ParseInt(values[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh session expires at: %w", err)
	}

	return &RefreshSession{
		Token:       token,
		PrincipalID: principalID,
		CreatedAt:   time.Unix(0, createdNanos).UTC(),
		ExpiresAt:   time.Unix(0, expiresNanos).UTC(),
	}, nil
}
