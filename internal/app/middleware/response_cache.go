package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResponseStore is where cached GET bodies live.
type ResponseStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// ErrCacheMiss is returned by ResponseStore.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return bs, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.SetEx(ctx, key, value, ttl).Err()
}

// DeletePrefix walks the keyspace with SCAN so large databases are not blocked.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s*: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// NewRedisClient pings the server and returns an error when it is unreachable,
// so the caller can run without the response cache.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

const cacheKeyPrefix = "tourbook:http:"

type ResponseCacheConfig struct {
	TTL time.Duration
	// Paths whose GET responses are cached. A successful write under any of
	// them clears every cached response.
	Prefixes []string
	// Paths containing one of these segments bypass the cache entirely.
	Exclude []string
	Logger  *zap.Logger
}

// captureWriter keeps a copy of the body while forwarding it to the client.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func cacheKey(r *http.Request) string {
	return cacheKeyPrefix + r.URL.Path + "?" + r.URL.RawQuery + "#" + r.Header.Get("Accept-Language")
}

func cacheable(path string, cfg ResponseCacheConfig) bool {
	for _, e := range cfg.Exclude {
		if strings.Contains(path, e) {
			return false
		}
	}
	for _, p := range cfg.Prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ResponseCache serves cached 200 JSON bodies for GET requests under the
// configured prefixes and drops them all after a successful write.
// A nil store turns the middleware into a pass-through.
func ResponseCache(store ResponseStore, cfg ResponseCacheConfig) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if !cacheable(c.Request.URL.Path, cfg) {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if c.Request.Method != http.MethodGet {
			c.Next()
			if status := c.Writer.Status(); status >= 200 && status < 300 {
				if err := store.DeletePrefix(context.WithoutCancel(ctx), cacheKeyPrefix); err != nil {
					logger.Warn("Failed to invalidate response cache", zap.String("path", c.Request.URL.Path), zap.Error(err))
				}
			}
			return
		}

		key := cacheKey(c.Request)
		if body, err := store.Get(ctx, key); err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		} else if !errors.Is(err, ErrCacheMiss) {
			logger.Warn("Response cache read failed", zap.Error(err))
		}

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Header("X-Cache", "MISS")
		c.Next()

		if cw.Status() == http.StatusOK && cw.buf.Len() > 0 {
			if err := store.Set(context.WithoutCancel(ctx), key, cw.buf.Bytes(), cfg.TTL); err != nil {
				logger.Warn("Response cache write failed", zap.Error(err))
			}
		}
	}
}
