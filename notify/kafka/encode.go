package kafka

import (
	"time"

	"github.com/dogmatiq/topology/discovery"
	"github.com/dogmatiq/topology/view"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// marshalEvent returns the JSON representation of e.
func marshalEvent(e discovery.Event, at time.Time) ([]byte, error) {
	fields := map[string]*structpb.Value{
		"type":        structpb.NewStringValue(e.Type.String()),
		"occurred_at": structpb.NewStringValue(at.UTC().Format(time.RFC3339Nano)),
	}

	if e.OldView != nil {
		fields["old_view"] = structpb.NewStructValue(marshalView(e.OldView))
	}

	if e.NewView != nil {
		fields["new_view"] = structpb.NewStructValue(marshalView(e.NewView))
	}

	return protojson.Marshal(&structpb.Struct{Fields: fields})
}

func marshalView(v *view.TopologyView) *structpb.Struct {
	var clusters []*structpb.Value

	for _, c := range v.ClusterViews() {
		var instances []*structpb.Value

		for _, i := range c.Instances() {
			props := &structpb.Struct{Fields: map[string]*structpb.Value{}}
			for k, v := range i.Properties() {
				props.Fields[k] = structpb.NewStringValue(v)
			}

			instances = append(instances, structpb.NewStructValue(
				&structpb.Struct{
					Fields: map[string]*structpb.Value{
						"id":         structpb.NewStringValue(i.ID()),
						"leader":     structpb.NewBoolValue(i.IsLeader()),
						"local":      structpb.NewBoolValue(i.IsLocal()),
						"properties": structpb.NewStructValue(props),
					},
				},
			))
		}

		cluster := &structpb.Struct{
			Fields: map[string]*structpb.Value{
				"id":        structpb.NewStringValue(c.ID()),
				"instances": structpb.NewListValue(&structpb.ListValue{Values: instances}),
			},
		}

		if t, ok := c.SyncToken(); ok {
			cluster.Fields["sync_token"] = structpb.NewStringValue(t)
		}

		clusters = append(clusters, structpb.NewStructValue(cluster))
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"current":  structpb.NewBoolValue(v.IsCurrent()),
			"clusters": structpb.NewListValue(&structpb.ListValue{Values: clusters}),
		},
	}
}
