package topology

import (
	"time"

	"github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/internal/telemetry"
	"github.com/dogmatiq/topology/persistence/kv"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

// An AgentOption configures the behavior of an [Agent].
type AgentOption func(*agentConfig)

// agentConfig encapsulates the configuration of an [Agent], built by applying
// [AgentOption] functions.
type agentConfig struct {
	InstanceID string
	ClusterID  string
	Properties map[string]string
	Telemetry  telemetry.Provider
	Keyspaces  kv.Store
	Source     discovery.Source
	Listeners  []discovery.Listener

	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// WithInstanceID is an [AgentOption] that sets the ID of the local instance.
//
// If it is not provided, a random UUID is used.
func WithInstanceID(id string) AgentOption {
	if id == "" {
		panic("instance ID must not be empty")
	}

	return func(cfg *agentConfig) {
		cfg.InstanceID = id
	}
}

// WithClusterID is an [AgentOption] that sets the ID of the cluster that the
// local instance belongs to.
//
// If it is not provided, the cluster ID is loaded from the key/value store,
// and generated on first use. All instances that share a store are therefore
// members of the same cluster by default.
func WithClusterID(id string) AgentOption {
	if id == "" {
		panic("cluster ID must not be empty")
	}

	return func(cfg *agentConfig) {
		cfg.ClusterID = id
	}
}

// WithProperties is an [AgentOption] that sets the initial properties
// advertised by the local instance.
func WithProperties(props map[string]string) AgentOption {
	return func(cfg *agentConfig) {
		if cfg.Properties == nil {
			cfg.Properties = map[string]string{}
		}
		maps.Copy(cfg.Properties, props)
	}
}

// WithKeyValueStore is an [AgentOption] that sets the key/value store used to
// coordinate with other instances.
func WithKeyValueStore(s kv.Store) AgentOption {
	if s == nil {
		panic("key/value store must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Keyspaces = s
	}
}

// WithSource is an [AgentOption] that sets the source of established cluster
// views, replacing the key/value store based registry.
//
// The source determines cluster membership, so it can not be combined with
// [WithClusterID].
func WithSource(s discovery.Source) AgentOption {
	if s == nil {
		panic("source must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Source = s
	}
}

// WithListener is an [AgentOption] that subscribes l to topology events.
func WithListener(l discovery.Listener) AgentOption {
	if l == nil {
		panic("listener must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Listeners = append(cfg.Listeners, l)
	}
}

// WithPollInterval is an [AgentOption] that sets the interval at which the
// agent rebuilds its view of the topology.
func WithPollInterval(d time.Duration) AgentOption {
	if d <= 0 {
		panic("poll interval must be positive")
	}

	return func(cfg *agentConfig) {
		cfg.PollInterval = d
	}
}

// WithHeartbeatInterval is an [AgentOption] that sets the interval at which the
// local instance renews its registration. Registrations expire after twice
// this interval.
func WithHeartbeatInterval(d time.Duration) AgentOption {
	if d <= 0 {
		panic("heartbeat interval must be positive")
	}

	return func(cfg *agentConfig) {
		cfg.HeartbeatInterval = d
	}
}

// WithTracerProvider is an [AgentOption] that sets the OpenTelemetry tracer
// provider used by the agent.
func WithTracerProvider(p trace.TracerProvider) AgentOption {
	if p == nil {
		panic("tracer provider must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Telemetry.TracerProvider = p
	}
}

// WithMeterProvider is an [AgentOption] that sets the OpenTelemetry meter
// provider used by the agent.
func WithMeterProvider(p metric.MeterProvider) AgentOption {
	if p == nil {
		panic("meter provider must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Telemetry.MeterProvider = p
	}
}

// WithLogger is an [AgentOption] that sets the logger used by the agent.
func WithLogger(l *slog.Logger) AgentOption {
	if l == nil {
		panic("logger must not be nil")
	}

	return func(cfg *agentConfig) {
		cfg.Telemetry.Logger = l
	}
}
