package gossip

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// meta is the metadata that each node advertises to its peers.
type meta struct {
	ClusterID  string
	Properties map[string]string
}

func (m meta) marshal() ([]byte, error) {
	props := &structpb.Struct{
		Fields: map[string]*structpb.Value{},
	}
	for k, v := range m.Properties {
		props.Fields[k] = structpb.NewStringValue(v)
	}

	return proto.Marshal(
		&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"cluster_id": structpb.NewStringValue(m.ClusterID),
				"properties": structpb.NewStructValue(props),
			},
		},
	)
}

func unmarshalMeta(data []byte) (meta, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return meta{}, fmt.Errorf("unable to unmarshal node metadata: %w", err)
	}

	m := meta{
		ClusterID:  s.GetFields()["cluster_id"].GetStringValue(),
		Properties: map[string]string{},
	}

	if m.ClusterID == "" {
		return meta{}, fmt.Errorf("node metadata does not contain a cluster ID")
	}

	for k, v := range s.GetFields()["properties"].GetStructValue().GetFields() {
		m.Properties[k] = v.GetStringValue()
	}

	return m, nil
}
