package redis_test

import (
	"context"
	"os"
	"testing"

	. "github.com/dogmatiq/topology/persistence/driver/redis"
	"github.com/dogmatiq/topology/persistence/kv"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestKeyValueStore(t *testing.T) {
	addr := os.Getenv("TOPOLOGY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOPOLOGY_TEST_REDIS_ADDR is not set")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Fatal(err)
		}
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}

	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			// Use a unique prefix for each test so they do not share state.
			return &KeyValueStore{
				Client: client,
				Prefix: "topology-test:" + uuid.NewString() + ":",
			}
		},
	)
}
