package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dogmatiq/topology"
	"github.com/dogmatiq/topology/gossip"
	"github.com/dogmatiq/topology/persistence/driver/aws/dynamodb"
	"github.com/dogmatiq/topology/persistence/driver/etcd"
	"github.com/dogmatiq/topology/persistence/driver/memory"
	"github.com/dogmatiq/topology/persistence/driver/postgres"
	"github.com/dogmatiq/topology/persistence/driver/redis"
	_ "github.com/jackc/pgx/v5/stdlib"
	goredis "github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/exp/slog"
)

// backend is the mechanism used by the agent to coordinate with other
// instances.
type backend struct {
	Options []topology.AgentOption
	Close   func() error

	// HasSource is true if the backend replaces the key/value registry, in
	// which case the cluster ID is applied by the backend itself.
	HasSource bool
}

// newBackend returns the backend selected by the TOPOLOGY_STORE environment
// variable.
func newBackend(
	ctx context.Context,
	instanceID string,
	props map[string]string,
	logger *slog.Logger,
) (backend, error) {
	switch driver := storeDriver.Value(); driver {
	case "memory":
		return backend{
			Options: []topology.AgentOption{
				topology.WithKeyValueStore(&memory.KeyValueStore{}),
			},
			Close: func() error { return nil },
		}, nil
	case "postgres":
		return newPostgresBackend(ctx)
	case "dynamodb":
		return newDynamoDBBackend(ctx)
	case "redis":
		return newRedisBackend(ctx)
	case "etcd":
		return newEtcdBackend()
	case "gossip":
		return newGossipBackend(ctx, instanceID, props, logger)
	default:
		return backend{}, fmt.Errorf("unsupported store: %q", driver)
	}
}

func newPostgresBackend(ctx context.Context) (backend, error) {
	dsn, ok := postgresDSN.Value()
	if !ok {
		return backend{}, errors.New("TOPOLOGY_POSTGRES_DSN must be set when using the postgres store")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return backend{}, err
	}

	if err := postgres.CreateKeyValueStoreSchema(ctx, db); err != nil {
		db.Close()
		return backend{}, err
	}

	return backend{
		Options: []topology.AgentOption{
			topology.WithKeyValueStore(&postgres.KeyValueStore{DB: db}),
		},
		Close: db.Close,
	}, nil
}

func newDynamoDBBackend(ctx context.Context) (backend, error) {
	var options []func(*config.LoadOptions) error

	if u, ok := dynamoDBEndpoint.Value(); ok {
		endpoint := u.String()
		options = append(
			options,
			config.WithEndpointResolverWithOptions(
				aws.EndpointResolverWithOptionsFunc(
					func(service, region string, options ...any) (aws.Endpoint, error) {
						return aws.Endpoint{URL: endpoint}, nil
					},
				),
			),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return backend{}, fmt.Errorf("unable to load AWS configuration: %w", err)
	}

	client := awsdynamodb.NewFromConfig(cfg)

	table := dynamoDBTable.Value()

	if err := dynamodb.CreateKeyValueStoreTable(ctx, client, table); err != nil {
		return backend{}, err
	}

	return backend{
		Options: []topology.AgentOption{
			topology.WithKeyValueStore(
				&dynamodb.KeyValueStore{
					Client: client,
					Table:  table,
				},
			),
		},
		Close: func() error { return nil },
	}, nil
}

func newRedisBackend(ctx context.Context) (backend, error) {
	addrs, ok := redisAddresses.Value()
	if !ok {
		return backend{}, errors.New("TOPOLOGY_REDIS_ADDRESSES must be set when using the redis store")
	}

	client := goredis.NewUniversalClient(
		&goredis.UniversalOptions{
			Addrs: splitList(addrs),
		},
	)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return backend{}, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return backend{
		Options: []topology.AgentOption{
			topology.WithKeyValueStore(&redis.KeyValueStore{Client: client}),
		},
		Close: client.Close,
	}, nil
}

func newEtcdBackend() (backend, error) {
	endpoints, ok := etcdEndpoints.Value()
	if !ok {
		return backend{}, errors.New("TOPOLOGY_ETCD_ENDPOINTS must be set when using the etcd store")
	}

	client, err := clientv3.New(
		clientv3.Config{
			Endpoints:   splitList(endpoints),
			DialTimeout: 5 * time.Second,
		},
	)
	if err != nil {
		return backend{}, fmt.Errorf("unable to connect to etcd: %w", err)
	}

	return backend{
		Options: []topology.AgentOption{
			topology.WithKeyValueStore(&etcd.KeyValueStore{Client: client}),
		},
		Close: client.Close,
	}, nil
}

func newGossipBackend(
	ctx context.Context,
	instanceID string,
	props map[string]string,
	logger *slog.Logger,
) (backend, error) {
	port, err := net.LookupPort("udp", gossipBindPort.Value())
	if err != nil {
		return backend{}, err
	}

	cluster, ok := clusterID.Value()
	if !ok {
		cluster = "default"
	}

	var seeds []string
	if v, ok := gossipSeeds.Value(); ok {
		seeds = splitList(v)
	}

	src, err := gossip.New(
		gossip.Config{
			InstanceID: instanceID,
			ClusterID:  cluster,
			Properties: props,
			BindAddr:   gossipBindAddress.Value(),
			BindPort:   port,
			Seeds:      seeds,
			Logger:     logger.With(slog.String("component", "gossip")),
		},
	)
	if err != nil {
		return backend{}, err
	}

	if err := src.Join(ctx); err != nil {
		src.Leave(time.Second)
		return backend{}, err
	}

	logger.Info(
		"gossip node started",
		slog.String("address", src.Address()),
	)

	return backend{
		Options: []topology.AgentOption{
			topology.WithSource(src),
		},
		Close: func() error {
			return src.Leave(5 * time.Second)
		},
		HasSource: true,
	}, nil
}
