package gossip

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dogmatiq/topology/established"
	"github.com/hashicorp/memberlist"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Config is the configuration for a gossip [Source].
type Config struct {
	// InstanceID is the ID of the local instance. It is used as the
	// memberlist node name.
	InstanceID string

	// ClusterID is the ID of the cluster that the local instance belongs to.
	ClusterID string

	// Properties is the initial set of properties advertised by the local
	// instance.
	Properties map[string]string

	BindAddr      string
	BindPort      int
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Seeds is a list of addresses of existing nodes to join.
	Seeds []string

	Logger *slog.Logger
}

// Source is a discovery source that learns cluster membership via gossip.
type Source struct {
	list     *memberlist.Memberlist
	delegate *delegate
	seeds    []string
	logger   *slog.Logger
}

// New starts a gossip node.
//
// The node does not contact other nodes until [Source.Join] is called.
func New(cfg Config) (*Source, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &delegate{
		logger: logger,
		meta: meta{
			ClusterID:  cfg.ClusterID,
			Properties: maps.Clone(cfg.Properties),
		},
	}

	config := memberlist.DefaultLocalConfig()
	config.Name = cfg.InstanceID
	config.LogOutput = io.Discard
	config.Delegate = d
	config.Events = d

	if cfg.BindAddr != "" {
		config.BindAddr = cfg.BindAddr
		config.AdvertiseAddr = cfg.BindAddr
	}
	config.BindPort = cfg.BindPort
	config.AdvertisePort = cfg.BindPort

	if cfg.ProbeInterval > 0 {
		config.ProbeInterval = cfg.ProbeInterval
	}
	if cfg.ProbeTimeout > 0 {
		config.ProbeTimeout = cfg.ProbeTimeout
	}

	list, err := memberlist.Create(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create memberlist: %w", err)
	}

	return &Source{
		list:     list,
		delegate: d,
		seeds:    cfg.Seeds,
		logger:   logger,
	}, nil
}

// Address returns the address that other nodes can use to join this node.
func (s *Source) Address() string {
	return s.list.LocalNode().Address()
}

// Join contacts the seed nodes. It succeeds if at least one of the seeds is
// reachable, or if there are no seeds.
func (s *Source) Join(context.Context) error {
	if len(s.seeds) == 0 {
		return nil
	}

	n, err := s.list.Join(s.seeds)
	if err != nil {
		return fmt.Errorf("unable to join gossip cluster: %w", err)
	}

	s.logger.Info(
		"joined gossip cluster",
		slog.Int("contacted_nodes", n),
	)

	return nil
}

// SetProperties replaces the properties advertised by the local instance.
func (s *Source) SetProperties(props map[string]string) error {
	prev := s.delegate.setProperties(props)

	if err := s.list.UpdateNode(5 * time.Second); err != nil {
		s.delegate.setProperties(prev)
		return fmt.Errorf("unable to advertise updated properties: %w", err)
	}

	return nil
}

// Snapshot returns a view of each cluster, based on the live gossip members.
func (s *Source) Snapshot(ctx context.Context) ([]established.Resource, error) {
	clusters := map[string]*resource{}

	for _, n := range s.list.Members() {
		m, err := unmarshalMeta(n.Meta)
		if err != nil {
			s.logger.WarnContext(
				ctx,
				"ignored gossip node with invalid metadata",
				slog.String("instance_id", n.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		r, ok := clusters[m.ClusterID]
		if !ok {
			r = &resource{clusterID: m.ClusterID}
			clusters[m.ClusterID] = r
		}

		r.members = append(r.members, established.Member{
			ID:         n.Name,
			Properties: m.Properties,
		})
	}

	ids := maps.Keys(clusters)
	slices.Sort(ids)

	resources := make([]established.Resource, 0, len(ids))
	for _, id := range ids {
		resources = append(resources, clusters[id])
	}

	return resources, ctx.Err()
}

// Leave broadcasts the local node's intent to leave and stops the node.
func (s *Source) Leave(timeout time.Duration) error {
	if err := s.list.Leave(timeout); err != nil {
		s.logger.Warn(
			"unable to leave gossip cluster gracefully",
			slog.String("error", err.Error()),
		)
	}
	return s.list.Shutdown()
}

// resource is an [established.Resource] for a cluster learned via gossip.
type resource struct {
	clusterID string
	members   []established.Member
}

func (r *resource) ClusterID() string {
	return r.clusterID
}

func (r *resource) LeaderID() string {
	return ""
}

// SyncToken returns a hash of the member IDs, so that the token changes
// whenever the membership does.
func (r *resource) SyncToken() (string, bool) {
	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.ID)
	}
	slices.Sort(ids)

	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(ids, "\x00"))), true
}

func (r *resource) Members() ([]established.Member, error) {
	return slices.Clone(r.members), nil
}
