package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Sync server metric names, as exposed at /metrics.
const (
	// Sessions currently attached across all documents.
	metricSessions = "mirrormap_sessions_active"

	// Documents currently resident in the store.
	metricDocsOpen = "mirrormap_docs_open"

	// Ops applied, labelled by op kind.
	metricOpsApplied = "mirrormap_ops_applied_total"

	// Ops rejected by validation or range checks.
	metricOpsRejected = "mirrormap_ops_rejected_total"

	// Events fanned out to attached sessions.
	metricEvents = "mirrormap_events_broadcast_total"

	// Documents created and evicted.
	metricDocsCreated = "mirrormap_docs_created_total"
	metricDocsEvicted = "mirrormap_docs_evicted_total"
)

// Snapshot is the raw outcome of one scrape. Counter fields hold totals
// since server start — not rates. Derive turns two snapshots into
// per-minute rates.
type Snapshot struct {
	ScrapedAt time.Time

	// Gauges: current values.
	SessionsActive float64
	DocsOpen       float64

	// Counters: totals since server start.
	OpsApplied  map[string]float64 // keyed by op kind
	OpsRejected float64
	EventsSent  float64
	DocsCreated float64
	DocsEvicted float64
}

// TotalOps sums applied ops across every kind.
func (s *Snapshot) TotalOps() float64 {
	var total float64
	for _, v := range s.OpsApplied {
		total += v
	}
	return total
}

// Options configures a Scraper beyond its endpoint.
type Options struct {
	// Header and Key, when both set, are sent on every request.
	Header string
	Key    string

	// Timeout bounds one scrape.
	Timeout time.Duration
}

// Scraper polls one sync server's metrics endpoint. It builds its HTTP
// client once and reuses it across scrape calls.
type Scraper struct {
	endpoint string
	client   *http.Client
}

// New returns a Scraper for the given metrics URL.
func New(endpoint string, opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	transport := http.DefaultTransport
	if opts.Header != "" && opts.Key != "" {
		transport = &authRoundTripper{base: transport, header: opts.Header, key: opts.Key}
	}
	return &Scraper{
		endpoint: endpoint,
		client:   &http.Client{Transport: transport, Timeout: opts.Timeout},
	}
}

// authRoundTripper injects the API key header into every outgoing request.
type authRoundTripper struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.header, t.key)
	return t.base.RoundTrip(req)
}

// Scrape fetches and parses the endpoint once.
func (s *Scraper) Scrape(ctx context.Context) (*Snapshot, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("stats: scrape %s: %w", s.endpoint, err)
	}
	return &Snapshot{
		ScrapedAt:      time.Now().UTC(),
		SessionsActive: sumFamily(mfs[metricSessions]),
		DocsOpen:       sumFamily(mfs[metricDocsOpen]),
		OpsApplied:     sumByLabel(mfs[metricOpsApplied], "kind"),
		OpsRejected:    sumFamily(mfs[metricOpsRejected]),
		EventsSent:     sumFamily(mfs[metricEvents]),
		DocsCreated:    sumFamily(mfs[metricDocsCreated]),
		DocsEvicted:    sumFamily(mfs[metricDocsEvicted]),
	}, nil
}

// fetchMetrics GETs url and parses the body into metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric
// families. A partial result with a non-fatal parse warning is still
// returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a family.
// A nil family (name absent from the scrape) sums to 0.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += metricValue(m)
	}
	return total
}

// sumByLabel groups a family's values by one label, summing metrics that
// share it. Metrics without the label land under the empty key.
func sumByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		var key string
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += metricValue(m)
	}
	return out
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
