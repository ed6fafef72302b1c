package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zombor/bill-ingest/internal/billing"
)

const redisKeyPrefix = "bill-ingest:token:"

// reserveScript performs the valid -> reserved transition in one server-side
// step. Returns {status, documentType}.
var reserveScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'state', 'document_type', 'created_at')
if not fields[1] then
  return {'not_found', ''}
end
if tonumber(ARGV[1]) - tonumber(fields[3]) > tonumber(ARGV[2]) then
  return {'expired', fields[2]}
end
if fields[1] ~= 'valid' then
  return {'already_used', fields[2]}
end
redis.call('HSET', KEYS[1], 'state', 'reserved', 'used_at', ARGV[1])
return {'ok', fields[2]}
`)

// releaseScript moves a reserved token back to valid, or deletes it once expired
var releaseScript = redis.NewScript(`
local created = redis.call('HGET', KEYS[1], 'created_at')
if not created then
  return 0
end
if tonumber(ARGV[1]) - tonumber(created) > tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'valid')
redis.call('HDEL', KEYS[1], 'used_at')
return 1
`)

// RedisStore keeps tokens as Redis hashes so several service instances can
// share them. Reserve runs as a Lua script, which Redis executes atomically.
// Keys carry a TTL slightly longer than the token TTL, so Redis reclaims
// abandoned tokens on its own.
type RedisStore struct {
	client redis.UniversalClient
	opts   options
}

// NewRedisStore creates a RedisStore from a redis:// URL
func NewRedisStore(ctx context.Context, url string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Issue creates a new valid token
func (s *RedisStore) Issue(ctx context.Context, documentType billing.DocumentType) (*QRToken, error) {
	tok := &QRToken{
		ID:           s.opts.ids.Generate(),
		DocumentType: documentType,
		CreatedAt:    s.opts.clock.Now(),
		State:        StateValid,
	}
	key := redisKey(tok.ID)

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"state", string(tok.State),
			"document_type", string(tok.DocumentType),
			"created_at", tok.CreatedAt.UnixMilli(),
		)
		p.Expire(ctx, key, s.opts.ttl+time.Minute)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	return tok, nil
}

// Validate reports whether id can be used
func (s *RedisStore) Validate(ctx context.Context, id string) (Validation, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return Validation{}, fmt.Errorf("reading token: %w", err)
	}
	tok, err := tokenFromHash(id, fields)
	if err != nil {
		return Validation{}, err
	}
	return validate(tok, s.opts.clock.Now(), s.opts.ttl), nil
}

// Reserve moves id from valid to reserved
func (s *RedisStore) Reserve(ctx context.Context, id string) (Reservation, error) {
	now := s.opts.clock.Now().UnixMilli()
	res, err := reserveScript.Run(ctx, s.client, []string{redisKey(id)}, now, s.opts.ttl.Milliseconds()).StringSlice()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserving token: %w", err)
	}
	if len(res) != 2 {
		return Reservation{}, fmt.Errorf("reserving token: unexpected script reply %v", res)
	}

	r := Reservation{DocumentType: billing.DocumentType(res[1])}
	switch res[0] {
	case "ok":
		r.OK = true
	case "not_found":
		r.Reason = ReasonNotFound
	case "expired":
		r.Reason = ReasonExpired
	default:
		r.Reason = ReasonAlreadyUsed
	}
	return r, nil
}

// Release moves a reserved id back to valid
func (s *RedisStore) Release(ctx context.Context, id string) error {
	now := s.opts.clock.Now().UnixMilli()
	if err := releaseScript.Run(ctx, s.client, []string{redisKey(id)}, now, s.opts.ttl.Milliseconds()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("releasing token: %w", err)
	}
	return nil
}

// Consume deletes id
func (s *RedisStore) Consume(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// Sweep deletes expired tokens that Redis has not reclaimed yet
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	now := s.opts.clock.Now()
	removed := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		created, err := s.client.HGet(ctx, key, "created_at").Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("reading token %s: %w", key, err)
		}
		if now.Sub(time.UnixMilli(created)) > s.opts.ttl {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("deleting token %s: %w", key, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning tokens: %w", err)
	}
	return removed, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func tokenFromHash(id string, fields map[string]string) (*QRToken, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token %s: bad created_at: %w", id, err)
	}
	tok := &QRToken{
		ID:           id,
		DocumentType: billing.DocumentType(fields["document_type"]),
		CreatedAt:    time.UnixMilli(created),
		State:        State(fields["state"]),
	}
	if used, ok := fields["used_at"]; ok {
		if ms, err := strconv.ParseInt(used, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			tok.UsedAt = &t
		}
	}
	return tok, nil
}

// TTL returns the lifetime of issued tokens
func (s *RedisStore) TTL() time.Duration {
	return s.opts.ttl
}
