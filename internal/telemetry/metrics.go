// Package telemetry is a thin abstraction over Prometheus so the worker
// can be used with or without metrics. When a *prometheus.Registry is
// supplied, labeled collectors are created and registered; otherwise a
// no-op sink is used and the hot path does not pay for metric updates.
//
// This follows a noop-vs-prometheus sink split, shared by pkg/engine
// (store/search/bytes) and internal/session (heartbeats, challenges)
// instead of being private to one package.
//
// © 2025 worker authors. MIT License.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Sink is the metrics surface the engine and session depend on. Engine and
// session operate purely in terms of this interface; only NewSink knows
// about the concrete backend.
type Sink interface {
	IncStoreRequests(status string)
	IncSearchRequests()
	ObserveVectorsStored(collection string, n int)
	SetVectorsTotal(n uint64)
	SetBytesUsed(n uint64)
	IncHeartbeats()
	IncChallenges(status string)
	IncCheckpointErrors()
}

type noopSink struct{}

func (noopSink) IncStoreRequests(string)          {}
func (noopSink) IncSearchRequests()               {}
func (noopSink) ObserveVectorsStored(string, int) {}
func (noopSink) SetVectorsTotal(uint64)           {}
func (noopSink) SetBytesUsed(uint64)              {}
func (noopSink) IncHeartbeats()                   {}
func (noopSink) IncChallenges(string)             {}
func (noopSink) IncCheckpointErrors()             {}

type promSink struct {
	storeRequests  *prometheus.CounterVec
	searchRequests prometheus.Counter
	vectorsStored  *prometheus.CounterVec
	vectorsTotal   prometheus.Gauge
	bytesUsed      prometheus.Gauge
	heartbeats     prometheus.Counter
	challenges     *prometheus.CounterVec
	checkpointErrs prometheus.Counter
}

// NewSink selects the prometheus-backed implementation when reg is
// non-nil, otherwise a no-op sink. Callers never call NewSink with the same
// registry twice for the same Sink-holding component, matching
// prometheus.Registry's "register once" semantics.
func NewSink(reg *prometheus.Registry) Sink {
	if reg == nil {
		return noopSink{}
	}

	const ns = "vecworker"
	s := &promSink{
		storeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "store_requests_total", Help: "Store requests handled, by status.",
		}, []string{"status"}),
		searchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "search_requests_total", Help: "Search requests handled.",
		}),
		vectorsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "vectors_stored_total", Help: "Vectors stored, by collection.",
		}, []string{"collection"}),
		vectorsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "vectors_total", Help: "Current total vectors held by the engine.",
		}),
		bytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "bytes_used", Help: "Current approximate bytes used by stored vectors.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "heartbeats_sent_total", Help: "Heartbeat frames sent to the coordinator.",
		}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "challenges_total", Help: "PoRAM challenges handled, by status.",
		}, []string{"status"}),
		checkpointErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "checkpoint_errors_total", Help: "Shard and collection save errors encountered during checkpointing.",
		}),
	}

	reg.MustRegister(
		s.storeRequests, s.searchRequests, s.vectorsStored, s.vectorsTotal,
		s.bytesUsed, s.heartbeats, s.challenges, s.checkpointErrs,
	)
	return s
}

func (s *promSink) IncStoreRequests(status string) { s.storeRequests.WithLabelValues(status).Inc() }
func (s *promSink) IncSearchRequests()              { s.searchRequests.Inc() }
func (s *promSink) ObserveVectorsStored(collection string, n int) {
	s.vectorsStored.WithLabelValues(collection).Add(float64(n))
}
func (s *promSink) SetVectorsTotal(n uint64)   { s.vectorsTotal.Set(float64(n)) }
func (s *promSink) SetBytesUsed(n uint64)      { s.bytesUsed.Set(float64(n)) }
func (s *promSink) IncHeartbeats()             { s.heartbeats.Inc() }
func (s *promSink) IncChallenges(status string) { s.challenges.WithLabelValues(status).Inc() }
func (s *promSink) IncCheckpointErrors()       { s.checkpointErrs.Inc() }

var _ Sink = noopSink{}
var _ Sink = (*promSink)(nil)
