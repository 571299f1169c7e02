package version

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/revgraph/pkg/cache"
)

// RedisStore keeps heads as members of a sorted set scored by insertion
// sequence.
type RedisStore struct {
	client  *redis.Client
	key     string
	backoff cache.Backoff
}

func openRedis(ctx context.Context, u *url.URL, b cache.Backoff) (*RedisStore, error) {
	q := u.Query()
	key := q.Get("key")
	if key == "" {
		key = DefaultKey
	}
	q.Del("key")
	clean := *u
	clean.RawQuery = q.Encode()

	opt, err := redis.ParseURL(clean.String())
	if err != nil {
		return nil, err
	}
	s := NewRedisStore(redis.NewClient(opt), key, b)
	if err := b.Retry(ctx, func() error { return transient(s.client.Ping(ctx).Err()) }); err != nil {
		s.client.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisStore uses client and key.
func NewRedisStore(client *redis.Client, key string, b cache.Backoff) *RedisStore {
	return &RedisStore{client: client, key: key, backoff: b}
}

// transient marks connection level failures for retry. Script and key
// errors surface immediately.
func transient(err error) error {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if strings.HasPrefix(err.Error(), "ERR") || strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return err
	}
	return cache.Retryable(err)
}

func (s *RedisStore) Heads(ctx context.Context) ([]string, error) {
	var members []string
	err := s.backoff.Retry(ctx, func() error {
		var err error
		members, err = s.client.ZRange(ctx, s.key, 0, -1).Result()
		return transient(err)
	})
	if err != nil {
		return nil, err
	}
	raw := make([]any, len(members))
	for i, m := range members {
		raw[i] = m
	}
	return coerce(raw)
}

// The write scripts keep check and write in one round trip. The score is
// one more than the current highest so ZRANGE returns insertion order.
var (
	insertScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
local top = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
local seq = 1
if top[2] then seq = tonumber(top[2]) + 1 end
redis.call('ZADD', KEYS[1], seq, ARGV[1])
return 1`)

	updateScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score then return 0 end
if ARGV[1] ~= ARGV[2] and redis.call('ZSCORE', KEYS[1], ARGV[2]) then return -1 end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[1], score, ARGV[2])
return 1`)
)

func (s *RedisStore) Insert(ctx context.Context, id string) error {
	var n int64
	err := s.backoff.Retry(ctx, func() error {
		var err error
		n, err = insertScript.Run(ctx, s.client, []string{s.key}, id).Int64()
		return transient(err)
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return duplicateError(id)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var n int64
	err := s.backoff.Retry(ctx, func() error {
		var err error
		n, err = s.client.ZRem(ctx, s.key, id).Result()
		return transient(err)
	})
	if err != nil {
		return err
	}
	if n != 1 {
		return rowCountError("deleting", id, n)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, from, to string) error {
	var n int64
	err := s.backoff.Retry(ctx, func() error {
		var err error
		n, err = updateScript.Run(ctx, s.client, []string{s.key}, from, to).Int64()
		return transient(err)
	})
	if err != nil {
		return err
	}
	switch n {
	case 0:
		return rowCountError("updating", from, 0)
	case -1:
		return duplicateError(to)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
