// Package telemetry publishes the state of a Store: a Status message on
// MQTT whenever it changes, and otel metrics from the Store counters.
package telemetry

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/nv.go/pkg/nv"
)

// Counters mirrors nv.Stats on the wire.
type Counters struct {
	Reads         uint64 `protobuf:"varint,1,opt,name=reads,proto3" json:"reads,omitempty"`
	CacheHits     uint64 `protobuf:"varint,2,opt,name=cache_hits,proto3" json:"cache_hits,omitempty"`
	BackendReads  uint64 `protobuf:"varint,3,opt,name=backend_reads,proto3" json:"backend_reads,omitempty"`
	Writes        uint64 `protobuf:"varint,4,opt,name=writes,proto3" json:"writes,omitempty"`
	Suppressed    uint64 `protobuf:"varint,5,opt,name=suppressed,proto3" json:"suppressed,omitempty"`
	Flushed       uint64 `protobuf:"varint,6,opt,name=flushed,proto3" json:"flushed,omitempty"`
	BusyPolls     uint64 `protobuf:"varint,7,opt,name=busy_polls,proto3" json:"busy_polls,omitempty"`
	WriteFailures uint64 `protobuf:"varint,8,opt,name=write_failures,proto3" json:"write_failures,omitempty"`
	Seals         uint64 `protobuf:"varint,9,opt,name=seals,proto3" json:"seals,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Counters) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Counters) Reset() { *m = Counters{} }

// String implements proto.Message.
func (m *Counters) String() string { return proto.CompactTextString(m) }

// Status is the retained state of one storage device.
type Status struct {
	Device    string    `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	Media     string    `protobuf:"bytes,2,opt,name=media,proto3" json:"media,omitempty"`
	Size      uint32    `protobuf:"varint,3,opt,name=size,proto3" json:"size,omitempty"`
	Committed bool      `protobuf:"varint,4,opt,name=committed,proto3" json:"committed,omitempty"`
	Valid     bool      `protobuf:"varint,5,opt,name=valid,proto3" json:"valid,omitempty"`
	Pending   uint32    `protobuf:"varint,6,opt,name=pending,proto3" json:"pending,omitempty"`
	Counters  *Counters `protobuf:"bytes,7,opt,name=counters,proto3" json:"counters,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// CountersOf converts Store counters.
func CountersOf(st nv.Stats) *Counters {
	return &Counters{
		Reads:         st.Reads,
		CacheHits:     st.CacheHits,
		BackendReads:  st.BackendReads,
		Writes:        st.Writes,
		Suppressed:    st.Suppressed,
		Flushed:       st.Flushed,
		BusyPolls:     st.BusyPolls,
		WriteFailures: st.WriteFailures,
		Seals:         st.Seals,
	}
}

// Encode serializes a Status.
func Encode(st *Status) ([]byte, error) {
	return proto.Marshal(st)
}

// Decode parses a Status.
func Decode(data []byte) (*Status, error) {
	st := &Status{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}
