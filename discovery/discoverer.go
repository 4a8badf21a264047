package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/topology/established"
	"github.com/dogmatiq/topology/internal/telemetry"
	"github.com/dogmatiq/topology/view"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/exp/slices"
)

const (
	// DefaultPollInterval is the default interval at which a [Discoverer]
	// polls its source.
	DefaultPollInterval = 5 * time.Second

	// DefaultRetryAttempts is the default number of attempts a [Discoverer]
	// makes to build a view before marking the topology as changing.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the default base delay between attempts.
	DefaultRetryDelay = 250 * time.Millisecond
)

// Discoverer periodically builds a view of the topology from a [Source] and
// publishes it to a [Holder].
type Discoverer struct {
	// InstanceID is the ID of the local instance.
	InstanceID string

	// Source provides the established views of each cluster.
	Source Source

	// Builder builds cluster views from the resources returned by Source. If
	// it is nil, an [established.Builder] is used.
	Builder established.ClusterViewBuilder

	// Holder receives each view that is built.
	Holder *Holder

	PollInterval  time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration

	Telemetry *telemetry.Provider

	telemetry *telemetry.Recorder
	cycles    metric.Int64Counter
	changes   metric.Int64Counter
}

// Run polls the source until ctx is canceled.
//
// Failure to build a view is not fatal. The holder is marked as changing and
// the previous view remains available until a new view can be built.
func (d *Discoverer) Run(ctx context.Context) error {
	interval := d.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if _, err := d.Discover(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The error has already been recorded.
		}

		if err := linger.SleepX(
			ctx,
			linger.FullJitter,
			interval,
		); err != nil {
			return err
		}
	}
}

// Discover builds a new view of the topology and publishes it to the holder.
//
// It returns [view.NoChange] without publishing anything if the local instance
// is not yet a member of any established cluster view.
func (d *Discoverer) Discover(ctx context.Context) (view.ChangeKind, error) {
	d.init()

	ctx, span := d.telemetry.StartSpan(
		ctx,
		"discoverer.discover",
		telemetry.String("instance_id", d.InstanceID),
	)
	defer span.End()

	d.cycles.Add(ctx, 1)
	start := time.Now()

	var v *view.TopologyView

	err := retry.Do(
		func() error {
			var err error
			v, err = d.build(ctx, span)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts()),
		retry.Delay(d.delay()),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			span.Warn(
				"unable to build topology view",
				telemetry.Int("attempt", n+1),
				telemetry.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return view.NoChange, ctx.Err()
		}

		span.Error("unable to build topology view, marking topology as changing", err)
		d.Holder.MarkChanging(ctx)

		return view.NoChange, err
	}

	if v == nil {
		span.Debug("local instance is not yet part of an established cluster view")
		return view.NoChange, nil
	}

	kind, err := d.Holder.Publish(ctx, v)
	if err != nil {
		span.Error("unable to publish topology view", err)
		return view.NoChange, err
	}

	span.SetAttributes(
		telemetry.Stringer("change_kind", kind),
		telemetry.Int("cluster_count", len(v.ClusterViews())),
		telemetry.Int("instance_count", v.Instances().Len()),
	)

	if kind != view.NoChange {
		d.changes.Add(
			ctx,
			1,
			metric.WithAttributes(attribute.String("change_kind", kind.String())),
		)

		local := v.LocalInstance()

		span.Info(
			"published new topology view",
			telemetry.Stringer("change_kind", kind),
			telemetry.Int("cluster_count", len(v.ClusterViews())),
			telemetry.Int("instance_count", v.Instances().Len()),
			telemetry.If(local != nil, telemetry.Bool("is_leader", local != nil && local.IsLeader())),
			telemetry.Duration("elapsed", time.Since(start)),
		)
	}

	return kind, nil
}

// build reads the established views from the source and assembles them into
// a topology view. It returns nil if the local instance is not present in any
// cluster.
func (d *Discoverer) build(ctx context.Context, span *telemetry.Span) (*view.TopologyView, error) {
	resources, err := d.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read established views: %w", err)
	}

	var (
		clusters []*view.ClusterView
		local    *view.ClusterView
	)

	for _, r := range resources {
		c, err := d.builder().BuildClusterView(r, d.InstanceID)
		if err != nil {
			return nil, err
		}

		if local == nil {
			if _, ok := c.Instance(d.InstanceID); ok {
				local = c
				continue
			}
		}

		clusters = append(clusters, c)
	}

	if local == nil {
		return nil, nil
	}

	slices.SortFunc(clusters, func(a, b *view.ClusterView) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})

	v := view.NewTopologyView()
	v.SetLocalClusterView(local)

	for _, c := range clusters {
		if reason, ok := conflicts(v, c); ok {
			span.Warn(
				"ignored conflicting cluster view",
				telemetry.String("cluster_id", c.ID()),
				telemetry.String("reason", reason),
			)
			continue
		}

		for _, i := range c.Instances() {
			v.AddInstance(i)
		}
	}

	return v, nil
}

// conflicts returns a description of the conflict if c cannot be added to v.
func conflicts(v *view.TopologyView, c *view.ClusterView) (string, bool) {
	if v.ClusterView(c.ID()) != nil {
		return "duplicate cluster ID", true
	}

	for _, i := range c.Instances() {
		if _, ok := v.Instance(i.ID()); ok {
			return fmt.Sprintf("instance %q is already a member of another cluster", i.ID()), true
		}
	}

	return "", false
}

func (d *Discoverer) init() {
	if d.telemetry != nil {
		return
	}

	d.telemetry = d.Telemetry.Recorder(
		"github.com/dogmatiq/topology/discovery",
		"discoverer",
	)

	d.cycles = d.telemetry.Int64Counter(
		"cycles",
		metric.WithDescription("The number of discovery cycles that have been started."),
		metric.WithUnit("{cycle}"),
	)

	d.changes = d.telemetry.Int64Counter(
		"changes",
		metric.WithDescription("The number of topology changes that have been published."),
		metric.WithUnit("{change}"),
	)
}

func (d *Discoverer) builder() established.ClusterViewBuilder {
	if d.Builder == nil {
		d.Builder = &established.Builder{
			Logger: d.telemetry.Logger(),
		}
	}
	return d.Builder
}

func (d *Discoverer) attempts() uint {
	if d.RetryAttempts == 0 {
		return DefaultRetryAttempts
	}
	return d.RetryAttempts
}

func (d *Discoverer) delay() time.Duration {
	if d.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return d.RetryDelay
}
