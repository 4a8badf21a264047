package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dogmatiq/ferrite"
	"github.com/dogmatiq/topology/discovery"
)

var (
	instanceID = ferrite.
			String("TOPOLOGY_INSTANCE_ID", "a unique identifier for this instance").
			Optional()

	clusterID = ferrite.
			String("TOPOLOGY_CLUSTER_ID", "the ID of the cluster that this instance belongs to").
			Optional()

	properties = ferrite.
			String("TOPOLOGY_PROPERTIES", "a comma-separated list of name=value properties advertised by this instance").
			WithConstraint(
			"must be a comma-separated list of name=value pairs",
			func(v string) bool {
				_, err := parseProperties(v)
				return err == nil
			},
		).
		Optional()

	pollInterval = ferrite.
			Duration("TOPOLOGY_POLL_INTERVAL", "the interval at which the topology is rebuilt").
			WithDefault(discovery.DefaultPollInterval).
			Required()

	heartbeatInterval = ferrite.
				Duration("TOPOLOGY_HEARTBEAT_INTERVAL", "the interval at which this instance renews its registration").
				WithDefault(5 * time.Second).
				Required()

	logLevel = ferrite.
			Enum("TOPOLOGY_LOG_LEVEL", "the minimum level of log messages").
			WithMembers("debug", "info", "warn", "error").
			WithDefault("info").
			Required()

	healthListenAddress = ferrite.
				String("TOPOLOGY_GRPC_HEALTH_ADDRESS", "the address on which the gRPC health service listens").
				WithConstraint(
			"must be a network address",
			isNetworkAddress,
		).
		Optional()
)

var (
	storeDriver = ferrite.
			Enum("TOPOLOGY_STORE", "the mechanism used to coordinate with other instances").
			WithMembers("memory", "postgres", "dynamodb", "redis", "etcd", "gossip").
			WithDefault("memory").
			Required()

	postgresDSN = ferrite.
			String("TOPOLOGY_POSTGRES_DSN", "the DSN of the PostgreSQL database").
			Optional()

	dynamoDBTable = ferrite.
			String("TOPOLOGY_DYNAMODB_TABLE", "the name of the DynamoDB table").
			WithDefault("topology").
			Required()

	dynamoDBEndpoint = ferrite.
				URL("TOPOLOGY_DYNAMODB_ENDPOINT", "overrides the DynamoDB endpoint, for use with local emulators").
				Optional()

	redisAddresses = ferrite.
			String("TOPOLOGY_REDIS_ADDRESSES", "a comma-separated list of Redis server addresses").
			Optional()

	etcdEndpoints = ferrite.
			String("TOPOLOGY_ETCD_ENDPOINTS", "a comma-separated list of etcd endpoints").
			Optional()

	gossipBindAddress = ferrite.
				String("TOPOLOGY_GOSSIP_BIND_ADDRESS", "the address on which the gossip node listens").
				WithDefault("0.0.0.0").
				Required()

	gossipBindPort = ferrite.
			NetworkPort("TOPOLOGY_GOSSIP_BIND_PORT", "the port on which the gossip node listens").
			WithDefault("7946").
			Required()

	gossipSeeds = ferrite.
			String("TOPOLOGY_GOSSIP_SEEDS", "a comma-separated list of addresses of existing gossip nodes").
			Optional()
)

var (
	kafkaBrokers = ferrite.
			String("TOPOLOGY_KAFKA_BROKERS", "a comma-separated list of Kafka brokers that receive topology events").
			Optional()

	kafkaTopic = ferrite.
			String("TOPOLOGY_KAFKA_TOPIC", "the Kafka topic to which topology events are written").
			WithDefault("topology-events").
			Required()
)

func isNetworkAddress(v string) bool {
	_, port, err := net.SplitHostPort(v)
	return err == nil && port != ""
}

// parseProperties parses a comma-separated list of name=value pairs.
func parseProperties(v string) (map[string]string, error) {
	props := map[string]string{}

	for _, pair := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed property %q, expected name=value", pair)
		}
		props[name] = strings.TrimSpace(value)
	}

	return props, nil
}

// splitList splits a comma-separated list, discarding empty elements.
func splitList(v string) []string {
	var list []string

	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	return list
}
