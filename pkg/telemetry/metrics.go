package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/robotalks/nv.go/pkg/nv"
)

// Metrics turns Store counters into otel instruments. Counters are fed
// with the delta since the previous Record.
type Metrics struct {
	reads    metric.Int64Counter
	hits     metric.Int64Counter
	loads    metric.Int64Counter
	writes   metric.Int64Counter
	skipped  metric.Int64Counter
	flushed  metric.Int64Counter
	busy     metric.Int64Counter
	failures metric.Int64Counter
	seals    metric.Int64Counter
	pending  metric.Int64Gauge
	attrs    metric.MeasurementOption
	last     nv.Stats
}

// NewMetrics creates the instruments on meter, tagged with device.
func NewMetrics(meter metric.Meter, device string) (*Metrics, error) {
	m := &Metrics{attrs: metric.WithAttributes(attribute.String("nv.device", device))}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.reads, "nv.reads", "Client read accesses", "{access}"},
		{&m.hits, "nv.cache.hits", "Bytes served from the cache", "By"},
		{&m.loads, "nv.backend.reads", "Bytes read from the media", "By"},
		{&m.writes, "nv.writes", "Client write and update accesses", "{access}"},
		{&m.skipped, "nv.writes.suppressed", "Bytes not written because unchanged", "By"},
		{&m.flushed, "nv.flushed", "Bytes persisted by the media", "By"},
		{&m.busy, "nv.busy_polls", "Polls deferred by busy media", "{poll}"},
		{&m.failures, "nv.write_failures", "Writes rejected by the media", "{error}"},
		{&m.seals, "nv.seals", "Validity markers written", "{seal}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	pending, err := meter.Int64Gauge("nv.pending",
		metric.WithDescription("Bytes waiting for flush"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	m.pending = pending
	return m, nil
}

// Record adds the counter deltas since the previous call.
func (m *Metrics) Record(ctx context.Context, st nv.Stats) {
	add := func(c metric.Int64Counter, cur, prev uint64) {
		if cur > prev {
			c.Add(ctx, int64(cur-prev), m.attrs)
		}
	}
	add(m.reads, st.Reads, m.last.Reads)
	add(m.hits, st.CacheHits, m.last.CacheHits)
	add(m.loads, st.BackendReads, m.last.BackendReads)
	add(m.writes, st.Writes, m.last.Writes)
	add(m.skipped, st.Suppressed, m.last.Suppressed)
	add(m.flushed, st.Flushed, m.last.Flushed)
	add(m.busy, st.BusyPolls, m.last.BusyPolls)
	add(m.failures, st.WriteFailures, m.last.WriteFailures)
	add(m.seals, st.Seals, m.last.Seals)
	m.pending.Record(ctx, int64(st.Pending), m.attrs)
	m.last = st
}
