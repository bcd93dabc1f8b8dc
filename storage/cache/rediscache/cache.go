// Package rediscache stores cached responses in Redis.
package rediscache

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/preschool/core"
)

const (
	scanCount   = 200
	deleteBatch = 500
)

var globReplacer = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

type Cache struct {
	client    *redis.Client
	namespace string
}

var _ core.Cache = (*Cache)(nil)

// Open connects to the Redis server at conf.Addr. Keys are prefixed with `namespace`.
func Open(ctx context.Context, conf core.RedisConfig, namespace string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Addr)
	}
	return New(client, namespace), nil
}

func New(client *redis.Client, namespace string) *Cache {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &Cache{client: client, namespace: namespace}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "getting cached value")
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, c.namespace+key, val, ttl).Err(), "setting cached value")
}

// DeletePrefix scans the keys matching every prefix and deletes them in batches.
func (c *Cache) DeletePrefix(ctx context.Context, prefixes ...string) error {
	for _, prefix := range prefixes {
		pattern := globReplacer.Replace(c.namespace+prefix) + "*"
		keys := make([]string, 0, deleteBatch)
		iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if len(keys) == deleteBatch {
				if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
					return errors.Wrapf(err, "deleting %q keys", prefix)
				}
				keys = keys[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return errors.Wrapf(err, "scanning %q keys", prefix)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "deleting %q keys", prefix)
			}
		}
	}
	return nil
}
