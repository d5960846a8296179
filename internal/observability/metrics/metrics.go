package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory counters and gauges for HTTP requests, media
// uploads, and viewer interactions. It coordinates concurrent writers via a
// RWMutex while exposing a thread-safe gauge for in-flight uploads.
type Recorder struct {
	mu                sync.RWMutex
	requestCount      map[requestLabel]uint64
	requestDuration   map[requestLabel]time.Duration
	uploadCount       map[string]uint64
	uploadBytes       map[string]uint64
	uploadFailures    map[string]uint64
	interactionEvents map[string]uint64
	activeUploads     atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:      make(map[requestLabel]uint64),
		requestDuration:   make(map[requestLabel]time.Duration),
		uploadCount:       make(map[string]uint64),
		uploadBytes:       make(map[string]uint64),
		uploadFailures:    make(map[string]uint64),
		interactionEvents: make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// UploadStarted increments the in-flight upload gauge.
func (r *Recorder) UploadStarted() {
	r.activeUploads.Add(1)
}

// ObserveUpload records a completed media upload keyed by field kind
// (avatar, channelBanner, thumbnail, video) and decrements the in-flight
// gauge.
func (r *Recorder) ObserveUpload(kind string, bytes int64) {
	normalized := normalizeName(kind)
	r.mu.Lock()
	r.uploadCount[normalized]++
	if bytes > 0 {
		r.uploadBytes[normalized] += uint64(bytes)
	}
	r.mu.Unlock()
	r.decrementGauge(&r.activeUploads)
}

// ObserveUploadFailure records a rejected or failed upload keyed by field
// kind and decrements the in-flight gauge.
func (r *Recorder) ObserveUploadFailure(kind string) {
	normalized := normalizeName(kind)
	r.mu.Lock()
	r.uploadFailures[normalized]++
	r.mu.Unlock()
	r.decrementGauge(&r.activeUploads)
}

// ObserveInteraction records a viewer interaction event such as like,
// dislike, subscribe, unsubscribe, view, or comment.
func (r *Recorder) ObserveInteraction(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.interactionEvents[normalized]++
	r.mu.Unlock()
}

// ActiveUploads exposes the current gauge of in-flight media uploads.
func (r *Recorder) ActiveUploads() int64 {
	return r.activeUploads.Load()
}

// UploadCounts returns copies of the upload counters for testing and
// reporting purposes.
func (r *Recorder) UploadCounts() (completed map[string]uint64, failed map[string]uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	completed = make(map[string]uint64, len(r.uploadCount))
	for k, v := range r.uploadCount {
		completed[k] = v
	}
	failed = make(map[string]uint64, len(r.uploadFailures))
	for k, v := range r.uploadFailures {
		failed[k] = v
	}
	return completed, failed
}

// InteractionCounts returns a copy of the interaction counters.
func (r *Recorder) InteractionCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make(map[string]uint64, len(r.interactionEvents))
	for k, v := range r.interactionEvents {
		events[k] = v
	}
	return events
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.uploadCount = make(map[string]uint64)
	r.uploadBytes = make(map[string]uint64)
	r.uploadFailures = make(map[string]uint64)
	r.interactionEvents = make(map[string]uint64)
	r.activeUploads.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	uploadKinds := r.sortedUploadKinds()
	interactions := r.sortedInteractionEvents()

	fmt.Fprintln(w, "# HELP viewtube_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE viewtube_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "viewtube_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP viewtube_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE viewtube_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "viewtube_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP viewtube_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE viewtube_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "viewtube_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP viewtube_media_uploads_total Completed media uploads by field kind")
	fmt.Fprintln(w, "# TYPE viewtube_media_uploads_total counter")
	for _, kind := range uploadKinds {
		fmt.Fprintf(w, "viewtube_media_uploads_total{kind=\"%s\"} %d\n", kind, r.uploadCount[kind])
	}

	fmt.Fprintln(w, "# HELP viewtube_media_upload_bytes_total Bytes accepted into object storage by field kind")
	fmt.Fprintln(w, "# TYPE viewtube_media_upload_bytes_total counter")
	for _, kind := range uploadKinds {
		fmt.Fprintf(w, "viewtube_media_upload_bytes_total{kind=\"%s\"} %d\n", kind, r.uploadBytes[kind])
	}

	fmt.Fprintln(w, "# HELP viewtube_media_upload_failures_total Rejected or failed media uploads by field kind")
	fmt.Fprintln(w, "# TYPE viewtube_media_upload_failures_total counter")
	for _, kind := range uploadKinds {
		fmt.Fprintf(w, "viewtube_media_upload_failures_total{kind=\"%s\"} %d\n", kind, r.uploadFailures[kind])
	}

	fmt.Fprintln(w, "# HELP viewtube_media_active_uploads Current number of in-flight media uploads")
	fmt.Fprintln(w, "# TYPE viewtube_media_active_uploads gauge")
	fmt.Fprintf(w, "viewtube_media_active_uploads %d\n", r.activeUploads.Load())

	fmt.Fprintln(w, "# HELP viewtube_interaction_events_total Viewer interaction events by type")
	fmt.Fprintln(w, "# TYPE viewtube_interaction_events_total counter")
	for _, event := range interactions {
		fmt.Fprintf(w, "viewtube_interaction_events_total{event=\"%s\"} %d\n", event, r.interactionEvents[event])
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedUploadKinds() []string {
	seen := make(map[string]struct{}, len(r.uploadCount)+len(r.uploadFailures))
	for kind := range r.uploadCount {
		seen[kind] = struct{}{}
	}
	for kind := range r.uploadBytes {
		seen[kind] = struct{}{}
	}
	for kind := range r.uploadFailures {
		seen[kind] = struct{}{}
	}
	kinds := make([]string, 0, len(seen))
	for kind := range seen {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Recorder) sortedInteractionEvents() []string {
	events := make([]string, 0, len(r.interactionEvents))
	for event := range r.interactionEvents {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// looksLikeIdentifier flags path segments that are record IDs rather than
// fixed route words. IDs are hex strings, so a digit-heavy segment is enough.
func looksLikeIdentifier(segment string) bool {
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	if digitCount >= 3 {
		return true
	}
	return len(segment) >= 16 && digitCount > 0
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveInteraction records an interaction event on the default recorder.
func ObserveInteraction(event string) {
	defaultRecorder.ObserveInteraction(event)
}

// UploadStarted marks an in-flight upload on the default recorder.
func UploadStarted() {
	defaultRecorder.UploadStarted()
}

// ObserveUpload records a completed upload on the default recorder.
func ObserveUpload(kind string, bytes int64) {
	defaultRecorder.ObserveUpload(kind, bytes)
}

// ObserveUploadFailure records a rejected or failed upload on the default
// recorder.
func ObserveUploadFailure(kind string) {
	defaultRecorder.ObserveUploadFailure(kind)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
