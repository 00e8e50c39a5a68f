package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	HTTP      httpSummary   `json:"http"`
	Auth      authInfo      `json:"auth"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	CSRF      csrfInfo      `json:"csrf"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type authInfo struct {
	LoginSuccesses  float64 `json:"loginSuccesses"`
	LoginFailures   float64 `json:"loginFailures"`
	SessionTimeouts float64 `json:"sessionTimeouts"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type csrfInfo struct {
	Rejections float64 `json:"rejections"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// SummaryHandler returns an http.HandlerFunc serving live metrics as JSON.
func (m *Metrics) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleSummary(w)
	}
}

func (m *Metrics) handleSummary(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam["nippo_server_start_time_seconds"])
	summary := Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["nippo_http_requests_total"]),
			ErrorRate:     computeErrorRate(fam["nippo_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["nippo_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["nippo_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["nippo_http_request_duration_seconds"], 0.99),
		},
		Auth: authInfo{
			LoginSuccesses:  counterValue(fam["nippo_login_successes_total"]),
			LoginFailures:   sumCounter(fam["nippo_login_failures_total"]),
			SessionTimeouts: counterValue(fam["nippo_session_timeouts_total"]),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["nippo_ratelimit_rejections_total"]),
		},
		CSRF: csrfInfo{
			Rejections: counterValue(fam["nippo_csrf_rejections_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["nippo_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["nippo_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["nippo_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func counterValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetCounter() != nil {
		return ms[0].GetCounter().GetValue()
	}
	return 0
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile estimates a percentile from aggregated histogram
// buckets using linear interpolation within the located bucket.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	// Merge buckets across all label combinations.
	merged := make(map[float64]uint64)
	var totalCount uint64
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			merged[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(merged))
	for ub := range merged {
		bounds = append(bounds, ub)
	}
	sortFloats(bounds)

	target := q * float64(totalCount)
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		count := merged[ub]
		if float64(count) >= target {
			bucketCount := count - prevCount
			if bucketCount == 0 {
				return ub
			}
			frac := (target - float64(prevCount)) / float64(bucketCount)
			return prevBound + (ub-prevBound)*frac
		}
		prevBound = ub
		prevCount = count
	}
	return prevBound
}

func sortFloats(s []float64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
