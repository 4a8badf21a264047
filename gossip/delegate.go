package gossip

import (
	"sync"

	"github.com/hashicorp/memberlist"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

// delegate advertises the local node's metadata and logs membership events.
type delegate struct {
	logger *slog.Logger

	m    sync.Mutex
	meta meta
}

var (
	_ memberlist.Delegate      = (*delegate)(nil)
	_ memberlist.EventDelegate = (*delegate)(nil)
)

// setProperties replaces the advertised properties and returns the previous
// ones.
func (d *delegate) setProperties(props map[string]string) map[string]string {
	d.m.Lock()
	defer d.m.Unlock()
	prev := d.meta.Properties
	d.meta.Properties = maps.Clone(props)
	return prev
}

func (d *delegate) NodeMeta(limit int) []byte {
	d.m.Lock()
	m := d.meta
	d.m.Unlock()

	data, err := m.marshal()
	if err != nil {
		d.logger.Error(
			"unable to marshal node metadata",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if len(data) <= limit {
		return data
	}

	d.logger.Error(
		"node properties exceed the gossip metadata size limit, advertising cluster ID only",
		slog.Int("size", len(data)),
		slog.Int("limit", limit),
	)

	m.Properties = nil
	data, _ = m.marshal()

	return data
}

func (d *delegate) NotifyMsg([]byte)                           {}
func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *delegate) LocalState(join bool) []byte                { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool)     {}

func (d *delegate) NotifyJoin(n *memberlist.Node) {
	d.logger.Debug(
		"gossip node joined",
		slog.String("instance_id", n.Name),
		slog.String("address", n.Address()),
	)
}

func (d *delegate) NotifyLeave(n *memberlist.Node) {
	d.logger.Debug(
		"gossip node left",
		slog.String("instance_id", n.Name),
		slog.String("address", n.Address()),
	)
}

func (d *delegate) NotifyUpdate(n *memberlist.Node) {
	d.logger.Debug(
		"gossip node updated",
		slog.String("instance_id", n.Name),
	)
}
