package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

const (
	runPrefix = "run:"        // String prefix: run:{id} -> JSON report
	runsKey   = "runs"        // Sorted set: run ids scored by finish time
	latestKey = "runs:latest" // String: id of the latest succeeded run
)

// RedisStore keeps reports in Redis under an optional key prefix
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

// NewRedisClient creates a client and checks the connection
func NewRedisClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to Redis at %v: %w", addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		Client: client,
		Prefix: prefix,
	}
}

func (store *RedisStore) key(name string) string {
	if store.Prefix == "" {
		return name
	}
	return store.Prefix + ":" + name
}

func (store *RedisStore) runKey(id string) string {
	return store.key(runPrefix + id)
}

func (store *RedisStore) Save(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report %v: %w", report.ID, err)
	}

	pipe := store.Client.TxPipeline()
	pipe.Set(ctx, store.runKey(report.ID), data, 0)
	pipe.ZAdd(ctx, store.key(runsKey), &redis.Z{
		Score:  float64(report.FinishedAt.UnixMilli()),
		Member: report.ID,
	})
	// A failed run never replaces the last succeeded one
	if report.Succeeded() {
		pipe.Set(ctx, store.key(latestKey), report.ID, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Error saving report %s: %v", report.ID, err)
		return fmt.Errorf("failed to save report to Redis: %w", err)
	}
	return nil
}

func (store *RedisStore) Get(ctx context.Context, id string) (Report, error) {
	data, err := store.Client.Get(ctx, store.runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("failed to get report from Redis: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("failed to decode report %v: %w", id, err)
	}
	return report, nil
}

func (store *RedisStore) Latest(ctx context.Context) (Report, error) {
	id, err := store.Client.Get(ctx, store.key(latestKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("failed to get latest report id from Redis: %w", err)
	}
	return store.Get(ctx, id)
}

func (store *RedisStore) Recent(ctx context.Context, count int64) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	ids, err := store.Client.ZRevRange(ctx, store.key(runsKey), 0, count-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list reports from Redis: %w", err)
	}
	return ids, nil
}
