package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Metric names. Scrapers key on these; renaming one is a breaking change.
const (
	metricSessionsActive = "mirrormap_sessions_active"
	metricDocsOpen       = "mirrormap_docs_open"
	metricOpsApplied     = "mirrormap_ops_applied_total"
	metricOpsRejected    = "mirrormap_ops_rejected_total"
	metricEventsSent     = "mirrormap_events_broadcast_total"
	metricDocsCreated    = "mirrormap_docs_created_total"
	metricDocsEvicted    = "mirrormap_docs_evicted_total"
)

// Set accumulates the server's counters. All methods are safe for
// concurrent use.
type Set struct {
	mu          sync.Mutex
	opsApplied  map[string]float64 // by op kind
	opsRejected float64
	events      float64
	docsCreated float64
	docsEvicted float64

	sessionsFn func() int
	docsFn     func() int
}

// New returns an empty Set.
func New() *Set {
	return &Set{opsApplied: make(map[string]float64)}
}

// SessionsFunc injects the live reader behind the sessions gauge.
func (s *Set) SessionsFunc(fn func() int) { s.sessionsFn = fn }

// DocsFunc injects the live reader behind the open-documents gauge.
func (s *Set) DocsFunc(fn func() int) { s.docsFn = fn }

// OpApplied counts one successfully applied op of the given kind.
func (s *Set) OpApplied(kind string) {
	s.mu.Lock()
	s.opsApplied[kind]++
	s.mu.Unlock()
}

// OpRejected counts one op the store refused.
func (s *Set) OpRejected() {
	s.mu.Lock()
	s.opsRejected++
	s.mu.Unlock()
}

// EventsBroadcast counts n delivered event frames.
func (s *Set) EventsBroadcast(n int) {
	s.mu.Lock()
	s.events += float64(n)
	s.mu.Unlock()
}

// DocCreated counts one document created by a first attach.
func (s *Set) DocCreated() {
	s.mu.Lock()
	s.docsCreated++
	s.mu.Unlock()
}

// DocEvicted counts one idle document evicted from memory.
func (s *Set) DocEvicted() {
	s.mu.Lock()
	s.docsEvicted++
	s.mu.Unlock()
}

// Handler serves the current values in text exposition format.
func (s *Set) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range s.gather() {
			// The text encoder rejects families with no samples, which
			// ops_applied is until the first op lands.
			if len(mf.Metric) == 0 {
				continue
			}
			if err := enc.Encode(mf); err != nil {
				slog.Error("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

// gather builds the metric families from the current state.
func (s *Set) gather() []*dto.MetricFamily {
	s.mu.Lock()
	applied := make(map[string]float64, len(s.opsApplied))
	for k, v := range s.opsApplied {
		applied[k] = v
	}
	rejected, events := s.opsRejected, s.events
	created, evicted := s.docsCreated, s.docsEvicted
	s.mu.Unlock()

	sessions, docs := 0, 0
	if s.sessionsFn != nil {
		sessions = s.sessionsFn()
	}
	if s.docsFn != nil {
		docs = s.docsFn()
	}

	return []*dto.MetricFamily{
		gauge(metricSessionsActive, "Sessions currently attached.", float64(sessions)),
		gauge(metricDocsOpen, "Documents resident in memory.", float64(docs)),
		counterVec(metricOpsApplied, "Ops applied, by op kind.", "kind", applied),
		counter(metricOpsRejected, "Ops rejected by validation or range checks.", rejected),
		counter(metricEventsSent, "Event frames delivered to sessions.", events),
		counter(metricDocsCreated, "Documents created by a first attach.", created),
		counter(metricDocsEvicted, "Idle documents evicted from memory.", evicted),
	}
}

// --- family builders --------------------------------------------------------

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func counterVec(name, help, label string, vals map[string]float64) *dto.MetricFamily {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ms := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		ms = append(ms, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String(label), Value: proto.String(k)}},
			Counter: &dto.Counter{Value: proto.Float64(vals[k])},
		})
	}
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: ms,
	}
}
