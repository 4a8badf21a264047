// Package etcd provides a key/value store backed by etcd.
package etcd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dogmatiq/topology/persistence/kv"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyValueStore is an implementation of [kv.Store] that stores keyspaces in
// etcd.
//
// Each key/value pair is stored under "<prefix><keyspace>/<hex(key)>". Keys are
// hex-encoded so that keyspace names that are prefixes of one another remain
// isolated.
type KeyValueStore struct {
	Client *clientv3.Client

	// Prefix is prepended to all etcd keys. If it is empty, "/topology/" is
	// used.
	Prefix string
}

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "/topology/"
	}

	return &keyspace{
		client: s.Client,
		prefix: prefix + hex.EncodeToString([]byte(name)) + "/",
	}, ctx.Err()
}

type keyspace struct {
	client *clientv3.Client
	prefix string
}

func (ks *keyspace) key(k []byte) string {
	return ks.prefix + hex.EncodeToString(k)
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	res, err := ks.client.Get(ctx, ks.key(k))
	if err != nil {
		return nil, err
	}

	if len(res.Kvs) == 0 {
		return nil, nil
	}

	return res.Kvs[0].Value, nil
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	res, err := ks.client.Get(ctx, ks.key(k), clientv3.WithCountOnly())
	if err != nil {
		return false, err
	}

	return res.Count > 0, nil
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	if len(v) == 0 {
		_, err := ks.client.Delete(ctx, ks.key(k))
		return err
	}

	_, err := ks.client.Put(ctx, ks.key(k), string(v))
	return err
}

func (ks *keyspace) Range(ctx context.Context, fn kv.RangeFunc) error {
	res, err := ks.client.Get(ctx, ks.prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}

	for _, pair := range res.Kvs {
		k, err := hex.DecodeString(string(pair.Key[len(ks.prefix):]))
		if err != nil {
			return fmt.Errorf("etcd key %q is corrupt: %w", pair.Key, err)
		}

		ok, err := fn(ctx, k, pair.Value)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (ks *keyspace) Close() error {
	return nil
}
