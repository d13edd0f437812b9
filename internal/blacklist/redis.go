package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the blocklist with redis so multiple processes can share
// one view. Layout per namespace:
//
//	blacklist:{ns}:entries  hash  address -> entry JSON
//	blacklist:{ns}:order    list  addresses in insertion order
//
// HSetNX gives the first-reason-wins idempotence; the order list is only
// appended when HSetNX actually inserted.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects and verifies the server is reachable.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStore wraps an existing client (integration tests own the client).
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func entriesKey(namespace string) string { return "blacklist:" + namespace + ":entries" }
func orderKey(namespace string) string   { return "blacklist:" + namespace + ":order" }

func (s *RedisStore) Add(ctx context.Context, namespace, address, reason string) error {
	entry := Entry{
		Address: address,
		Reason:  reason,
		AddedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	inserted, err := s.client.HSetNX(ctx, entriesKey(namespace), address, payload).Result()
	if err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	if !inserted {
		return nil // already present, first reason wins
	}
	if err := s.client.RPush(ctx, orderKey(namespace), address).Err(); err != nil {
		return fmt.Errorf("blacklist order append: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, namespace, address string) error {
	removed, err := s.client.HDel(ctx, entriesKey(namespace), address).Result()
	if err != nil {
		return fmt.Errorf("blacklist remove: %w", err)
	}
	if removed == 0 {
		return nil
	}
	if err := s.client.LRem(ctx, orderKey(namespace), 1, address).Err(); err != nil {
		return fmt.Errorf("blacklist order remove: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, namespace string) ([]Entry, error) {
	addresses, err := s.client.LRange(ctx, orderKey(namespace), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("blacklist list: %w", err)
	}
	entries := make([]Entry, 0, len(addresses))
	if len(addresses) == 0 {
		return entries, nil
	}
	raw, err := s.client.HMGet(ctx, entriesKey(namespace), addresses...).Result()
	if err != nil {
		return nil, fmt.Errorf("blacklist entries fetch: %w", err)
	}
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue // removed between LRANGE and HMGET
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
