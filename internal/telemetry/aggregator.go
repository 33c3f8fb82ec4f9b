package telemetry

import (
	"context"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/netology-group/conferences/internal/store"
)

// BusQueueSnapshot reports one bus queue's length for a direction/kind pair.
type BusQueueSnapshot struct {
	Direction string
	Kind      string
	Length    float64
}

// MethodDuration reports dynamic percentiles for one handler method, derived
// from the duration histogram's buckets at sample time.
type MethodDuration struct {
	Method string
	P95    float64
	P99    float64
	Max    float64
}

// BackendLoadSnapshot reports reserve/agent load for one backend.
type BackendLoadSnapshot struct {
	BackendId string
	Reserve   int
	Agents    int
}

// Snapshot is a point-in-time view across every metrics source. Missing
// optional sources are simply absent from Errors; everything else still
// appears.
type Snapshot struct {
	BusQueueLengths       []BusQueueSnapshot
	StorePoolSize         int
	StorePoolIdle         int
	HandlerDurations      []MethodDuration
	BackendLoad           []BackendLoadSnapshot
	BackendsOnline        int
	BackendsCapacityTotal int
	ConnectedAgents       int
	InFlightRequests      float64
	Errors                map[string]error
}

// Aggregator builds Snapshots on demand for the metrics handler. Each source
// is gathered independently: a failure from one (e.g. a store call) is
// recorded in Snapshot.Errors under that source's name and does not prevent
// the rest of the snapshot from being built.
type Aggregator struct {
	store store.Store
}

// NewAggregator wires the aggregator to the store sources it polls live at
// sample time (pool stats, backend load, online/capacity/connected counts).
// The remaining sources (bus queue lengths, handler-duration percentiles,
// in-flight requests) are read directly off the already-registered
// Prometheus metrics rather than polled. The dispatcher updates the
// handler-duration and in-flight metrics; nothing in this repository sets
// the bus queue-length gauge, so that part of the snapshot stays empty.
func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Sample gathers one Snapshot. ctx bounds the store calls only; reading the
// in-process Prometheus metrics never blocks.
func (a *Aggregator) Sample(ctx context.Context) Snapshot {
	snap := Snapshot{Errors: make(map[string]error)}

	if stats, err := a.store.PoolStats(ctx); err != nil {
		snap.Errors["store_pool"] = err
	} else {
		snap.StorePoolSize = stats.Size
		snap.StorePoolIdle = stats.Idle
	}

	if n, err := a.store.CountBackends(ctx); err != nil {
		snap.Errors["backends_online"] = err
	} else {
		snap.BackendsOnline = n
	}

	if n, err := a.store.SumBackendCapacity(ctx); err != nil {
		snap.Errors["backends_capacity"] = err
	} else {
		snap.BackendsCapacityTotal = n
	}

	if n, err := a.store.ConnectedAgentsCount(ctx); err != nil {
		snap.Errors["connected_agents"] = err
	} else {
		snap.ConnectedAgents = n
	}

	if loads, err := a.store.BackendReserveLoad(ctx); err != nil {
		snap.Errors["backend_load"] = err
	} else {
		for id, load := range loads {
			snap.BackendLoad = append(snap.BackendLoad, BackendLoadSnapshot{
				BackendId: id.String(),
				Reserve:   load.Reserve,
				Agents:    load.Agents,
			})
		}
	}

	snap.BusQueueLengths = collectBusQueueLengths()
	snap.HandlerDurations = collectHandlerDurationPercentiles()
	snap.InFlightRequests = gaugeValue(InFlightRequests)

	return snap
}

func gaugeValue(g prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func collectBusQueueLengths() []BusQueueSnapshot {
	var out []BusQueueSnapshot
	for _, m := range collectVec(BusQueueLength) {
		out = append(out, BusQueueSnapshot{
			Direction: labelValue(m, "direction"),
			Kind:      labelValue(m, "kind"),
			Length:    m.GetGauge().GetValue(),
		})
	}
	return out
}

func collectHandlerDurationPercentiles() []MethodDuration {
	var out []MethodDuration
	for _, m := range collectVec(HandlerDuration) {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		p95, p99, max := histogramPercentiles(h)
		out = append(out, MethodDuration{
			Method: labelValue(m, "method"),
			P95:    p95,
			P99:    p99,
			Max:    max,
		})
	}
	return out
}

// collectVec drains every child metric off a Prometheus vector collector.
func collectVec(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramPercentiles derives p95/p99/max from cumulative bucket counts via
// linear interpolation within the bucket straddling each target rank. max is
// approximated as the upper bound of the last finite bucket that received
// any observations; observations above the largest finite bound are not
// reflected, so max is 0 when every observation lies there.
func histogramPercentiles(h *dto.Histogram) (p95, p99, max float64) {
	total := h.GetSampleCount()
	if total == 0 {
		return 0, 0, 0
	}

	buckets := h.GetBucket()
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].GetUpperBound() < buckets[j].GetUpperBound() })

	p95 = interpolateRank(buckets, total, 0.95)
	p99 = interpolateRank(buckets, total, 0.99)

	var prev uint64
	for _, b := range buckets {
		if b.GetCumulativeCount() > prev && !math.IsInf(b.GetUpperBound(), 1) {
			max = b.GetUpperBound()
		}
		prev = b.GetCumulativeCount()
	}
	return p95, p99, max
}

func interpolateRank(buckets []*dto.Bucket, total uint64, rank float64) float64 {
	target := rank * float64(total)
	var prevUpper, prevCount float64
	for _, b := range buckets {
		count := float64(b.GetCumulativeCount())
		upper := b.GetUpperBound()
		if count >= target {
			if math.IsInf(upper, 1) {
				return prevUpper
			}
			span := count - prevCount
			if span <= 0 {
				return upper
			}
			frac := (target - prevCount) / span
			return prevUpper + frac*(upper-prevUpper)
		}
		prevUpper, prevCount = upper, count
	}
	if len(buckets) == 0 {
		return 0
	}
	return buckets[len(buckets)-1].GetUpperBound()
}
