// Package queue is a redis-list task queue. Producers LPUSH JSON payloads
// onto named queues; consumers BRPOP them with a pool of workers. Queues can
// be namespaced so one competition's compute load is isolated from the
// shared default namespace.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arena-labs/arena-go/internal/platform/env"
)

// DefaultNamespace is the routing namespace used when a competition does not
// declare an isolated queue.
const DefaultNamespace = "default"

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func ConfigFromEnv() (Config, error) {
	db, err := env.Int("ARENA_REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Addr:      env.String("ARENA_REDIS_ADDR", "localhost:6379"),
		Password:  env.String("ARENA_REDIS_PASSWORD", ""),
		DB:        db,
		KeyPrefix: env.String("ARENA_QUEUE_PREFIX", "arena"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("redis addr is required")
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return errors.New("queue key prefix is required")
	}
	return nil
}

func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type Queue struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

func New(rdb *redis.Client, prefix string, logger *slog.Logger) *Queue {
	if rdb == nil {
		return nil
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "arena"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{rdb: rdb, prefix: prefix, logger: logger}
}

// Key is the redis list a queue lives at within a namespace.
func (q *Queue) Key(name, namespace string) string {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s:%s:%s", q.prefix, namespace, name)
}

// Publish enqueues one JSON payload. The namespace is an explicit argument
// resolved by the caller per dispatch, never connection state.
func (q *Queue) Publish(ctx context.Context, name, namespace string, payload any) error {
	if q == nil || q.rdb == nil {
		return errors.New("queue not initialized")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("queue name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.Key(name, namespace), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", q.Key(name, namespace), err)
	}
	return nil
}

// Handler processes one dequeued payload. A returned error is logged; the
// payload is not redelivered. Redelivery would risk double-dispatching work,
// and the submission terminal-state latch already absorbs duplicates.
type Handler func(ctx context.Context, payload []byte) error

// Consume runs workers goroutines popping from one queue until ctx is done.
func (q *Queue) Consume(ctx context.Context, name, namespace string, workers int, h Handler) {
	if q == nil || q.rdb == nil || h == nil {
		return
	}
	if workers < 1 {
		workers = 1
	}
	key := q.Key(name, namespace)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				res, err := q.rdb.BRPop(ctx, time.Second, key).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
						continue
					}
					if ctx.Err() != nil {
						return
					}
					q.logger.Error("queue pop failed", "queue", key, "error", err)
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
					continue
				}
				// BRPop returns [key, value].
				if len(res) != 2 {
					continue
				}
				if err := h(ctx, []byte(res[1])); err != nil {
					q.logger.Error("queue handler failed", "queue", key, "error", err)
				}
			}
		}()
	}
	wg.Wait()
}
