package cluster

import (
	"context"
	"fmt"

	"github.com/dogmatiq/topology/persistence/kv"
	"github.com/google/uuid"
)

var clusterIDKey = []byte("cluster_id")

// LoadClusterID returns the cluster ID persisted in the store, generating and
// persisting a new one if none exists.
//
// The stored value is re-read after it is written so that instances that race
// to generate an ID converge on the one that was persisted last.
func LoadClusterID(ctx context.Context, s kv.Store) (string, error) {
	ks, err := s.Open(ctx, MetaKeyspace)
	if err != nil {
		return "", err
	}
	defer ks.Close()

	id, err := ks.Get(ctx, clusterIDKey)
	if err != nil {
		return "", fmt.Errorf("unable to load cluster ID: %w", err)
	}

	if len(id) != 0 {
		return string(id), nil
	}

	if err := ks.Set(ctx, clusterIDKey, []byte(uuid.NewString())); err != nil {
		return "", fmt.Errorf("unable to store cluster ID: %w", err)
	}

	id, err = ks.Get(ctx, clusterIDKey)
	if err != nil {
		return "", fmt.Errorf("unable to load cluster ID: %w", err)
	}

	return string(id), nil
}
