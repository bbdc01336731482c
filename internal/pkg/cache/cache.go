package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/milanotravel/tourbooking/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// GetFloat retrieves a float value from the cache by key
func GetFloat(key string) (float64, error) {
	val, err := GetClient().Get(ctx, key).Float64()
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

const scanBatchSize = 100

// keyIterator is the slice of redis.ScanIterator that deleteBatched walks.
type keyIterator interface {
	Next(ctx context.Context) bool
	Val() string
	Err() error
}

// DeleteByPattern removes every key matching the given glob pattern. Keys
// are walked with SCAN instead of KEYS so the server never blocks on a
// large keyspace, and deleted in batches.
func DeleteByPattern(pattern string) error {
	c := GetClient()
	iter := c.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	return deleteBatched(iter, func(keys []string) error {
		return c.Del(ctx, keys...).Err()
	})
}

func deleteBatched(iter keyIterator, del func([]string) error) error {
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := del(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return del(batch)
	}
	return nil
}
