// Package redis provides a key/value store backed by Redis hashes.
package redis

import (
	"context"
	"errors"

	"github.com/dogmatiq/topology/persistence/kv"
	"github.com/redis/go-redis/v9"
)

// KeyValueStore is an implementation of [kv.Store] that stores each keyspace
// in a separate Redis hash.
type KeyValueStore struct {
	Client redis.UniversalClient

	// Prefix is prepended to the keyspace name to produce the name of the
	// Redis hash. If it is empty, "topology:" is used.
	Prefix string
}

// rangeBatchSize is the COUNT hint used when scanning a hash.
const rangeBatchSize = 100

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "topology:"
	}

	return &keyspace{
		client: s.Client,
		hash:   prefix + name,
	}, ctx.Err()
}

type keyspace struct {
	client redis.UniversalClient
	hash   string
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	v, err := ks.client.HGet(ctx, ks.hash, string(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return v, err
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	return ks.client.HExists(ctx, ks.hash, string(k)).Result()
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	if len(v) == 0 {
		return ks.client.HDel(ctx, ks.hash, string(k)).Err()
	}
	return ks.client.HSet(ctx, ks.hash, string(k), v).Err()
}

func (ks *keyspace) Range(ctx context.Context, fn kv.RangeFunc) error {
	var cursor uint64

	for {
		pairs, next, err := ks.client.HScan(ctx, ks.hash, cursor, "", rangeBatchSize).Result()
		if err != nil {
			return err
		}

		// HSCAN returns a flat list of alternating fields and values.
		for i := 0; i+1 < len(pairs); i += 2 {
			ok, err := fn(ctx, []byte(pairs[i]), []byte(pairs[i+1]))
			if !ok || err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}

		cursor = next
	}
}

func (ks *keyspace) Close() error {
	return nil
}
