package cluster

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/types/known/structpb"
)

// Registration is an instance's record in the registry.
type Registration struct {
	InstanceID string
	ClusterID  string
	Properties map[string]string
	ExpiresAt  time.Time
}

// IsExpired returns true if the registration has expired as of t.
func (r Registration) IsExpired(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}

const (
	instanceIDField = "instance_id"
	clusterIDField  = "cluster_id"
	expiresAtField  = "expires_at"
	propertiesField = "properties"
	leaderIDField   = "leader_id"
	syncTokenField  = "sync_token"
	generationField = "generation"
	membersField    = "members"
)

// marshalRegistration converts a Registration to its protocol buffers
// representation.
func marshalRegistration(r Registration) *structpb.Struct {
	props := &structpb.Struct{
		Fields: map[string]*structpb.Value{},
	}
	for k, v := range r.Properties {
		props.Fields[k] = structpb.NewStringValue(v)
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			instanceIDField: structpb.NewStringValue(r.InstanceID),
			clusterIDField:  structpb.NewStringValue(r.ClusterID),
			expiresAtField:  structpb.NewNumberValue(float64(r.ExpiresAt.UnixMilli())),
			propertiesField: structpb.NewStructValue(props),
		},
	}
}

// unmarshalRegistration converts a Registration from its protocol buffers
// representation.
func unmarshalRegistration(s *structpb.Struct) (Registration, error) {
	f := s.GetFields()

	r := Registration{
		InstanceID: f[instanceIDField].GetStringValue(),
		ClusterID:  f[clusterIDField].GetStringValue(),
		ExpiresAt:  time.UnixMilli(int64(f[expiresAtField].GetNumberValue())),
		Properties: map[string]string{},
	}

	if r.InstanceID == "" || r.ClusterID == "" {
		return Registration{}, errors.New("registration is corrupt: missing instance or cluster ID")
	}

	for k, v := range f[propertiesField].GetStructValue().GetFields() {
		r.Properties[k] = v.GetStringValue()
	}

	return r, nil
}

// viewRecord is the persisted established view of a single cluster.
type viewRecord struct {
	ClusterID  string
	LeaderID   string
	SyncToken  string
	Generation uint64

	// Members is the sorted list of member IDs. It is nil if the record does
	// not contain any member data.
	Members []string
}

// hasMember returns true if id is one of the members of the view.
func (r viewRecord) hasMember(id string) bool {
	_, ok := slices.BinarySearch(r.Members, id)
	return ok
}

// marshalView converts a viewRecord to its protocol buffers representation.
func marshalView(r viewRecord) *structpb.Struct {
	members := make([]*structpb.Value, 0, len(r.Members))
	for _, id := range r.Members {
		members = append(members, structpb.NewStringValue(id))
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			clusterIDField:  structpb.NewStringValue(r.ClusterID),
			leaderIDField:   structpb.NewStringValue(r.LeaderID),
			syncTokenField:  structpb.NewStringValue(r.SyncToken),
			generationField: structpb.NewNumberValue(float64(r.Generation)),
			membersField:    structpb.NewListValue(&structpb.ListValue{Values: members}),
		},
	}
}

// unmarshalView converts a viewRecord from its protocol buffers
// representation.
func unmarshalView(s *structpb.Struct) (viewRecord, error) {
	f := s.GetFields()

	r := viewRecord{
		ClusterID:  f[clusterIDField].GetStringValue(),
		LeaderID:   f[leaderIDField].GetStringValue(),
		SyncToken:  f[syncTokenField].GetStringValue(),
		Generation: uint64(f[generationField].GetNumberValue()),
	}

	if r.ClusterID == "" {
		return viewRecord{}, errors.New("established view is corrupt: missing cluster ID")
	}

	if m, ok := f[membersField]; ok {
		list := m.GetListValue()
		if list == nil {
			return viewRecord{}, fmt.Errorf("established view of cluster %q is corrupt: members is not a list", r.ClusterID)
		}

		r.Members = make([]string, 0, len(list.GetValues()))
		for _, v := range list.GetValues() {
			id, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok || id.StringValue == "" {
				return viewRecord{}, fmt.Errorf("established view of cluster %q is corrupt: member IDs must be non-empty strings", r.ClusterID)
			}
			r.Members = append(r.Members, id.StringValue)
		}
		slices.Sort(r.Members)
	}

	return r, nil
}
