package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// DefaultKeyPrefix namespaces salary entries in a shared Redis.
const DefaultKeyPrefix = "payroll:salary:"

// RedisOptions configures the Redis cache.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration // 0 keeps entries until cleared
}

// Redis stores results as JSON under prefix + tenant:teacher:from:to.
type Redis struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var _ payroll.ResultCache = (*Redis)(nil)

// NewRedis connects and pings with a 5s timeout.
func NewRedis(opts RedisOptions, logger *zap.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect %s: %w", opts.Addr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("redis cache connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return NewRedisFromClient(rdb, opts.KeyPrefix, opts.TTL, logger), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *goredis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *Redis) key(k payroll.CacheKey) string {
	return r.prefix + k.String()
}

func (r *Redis) Get(ctx context.Context, key payroll.CacheKey) (*payroll.SalaryResult, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var result payroll.SalaryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		r.logger.Warn("discarding unreadable cache entry", zap.String("key", r.key(key)), zap.Error(err))
		return nil, false, nil
	}
	return &result, true, nil
}

func (r *Redis) Set(ctx context.Context, key payroll.CacheKey, result *payroll.SalaryResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode salary result: %w", err)
	}
	return r.rdb.Set(ctx, r.key(key), raw, r.ttl).Err()
}

// Clear scans the matching key pattern and deletes in batches.
func (r *Redis) Clear(ctx context.Context, scope payroll.ClearScope) (int, error) {
	pattern := r.prefix + "*"
	if !scope.IsAll() {
		pattern = r.prefix + globEscape(string(scope.Tenant)) + ":"
		if scope.Teacher != "" {
			pattern += globEscape(string(scope.Teacher)) + ":"
		}
		pattern += "*"
	}

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}
