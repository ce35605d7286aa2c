package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MediaMetrics records upload, signing and deletion outcomes for the media
// pipeline.
type MediaMetrics struct {
	uploadDuration    *prometheus.HistogramVec
	uploadSuccess     *prometheus.CounterVec
	uploadFailure     *prometheus.CounterVec
	uploadRetries     *prometheus.CounterVec
	signRefresh       *prometheus.CounterVec
	signFailure       prometheus.Counter
	legacyMigrated    prometheus.Counter
	legacyPassthrough *prometheus.CounterVec
	deleteFailure     prometheus.Counter
}

// NewMediaMetrics registers the media pipeline metrics on the provided
// registerer.
func NewMediaMetrics(reg prometheus.Registerer) *MediaMetrics {
	if reg == nil {
		return &MediaMetrics{}
	}
	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_upload_duration_seconds",
		Help:    "Duration of media uploads in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	uploadSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_success",
		Help: "Successful media uploads.",
	}, []string{"kind"})
	uploadFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_failure",
		Help: "Failed media uploads after retries were exhausted.",
	}, []string{"kind"})
	uploadRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_retries",
		Help: "Individual upload attempts that failed and were retried.",
	}, []string{"kind"})
	signRefresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_sign_refresh",
		Help: "Signed URL refreshes by trigger.",
	}, []string{"reason"})
	signFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_sign_failure",
		Help: "Signed URL refreshes that failed and served stale state.",
	})
	legacyMigrated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_legacy_migrated",
		Help: "Legacy video references upgraded to structured form.",
	})
	legacyPassthrough := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_legacy_passthrough",
		Help: "Legacy video URLs served as-is without refresh, by kind.",
	}, []string{"kind"})
	deleteFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_delete_failure",
		Help: "Object deletions that failed during cleanup.",
	})
	reg.MustRegister(
		uploadDuration, uploadSuccess, uploadFailure, uploadRetries,
		signRefresh, signFailure, legacyMigrated, legacyPassthrough, deleteFailure,
	)
	return &MediaMetrics{
		uploadDuration:    uploadDuration,
		uploadSuccess:     uploadSuccess,
		uploadFailure:     uploadFailure,
		uploadRetries:     uploadRetries,
		signRefresh:       signRefresh,
		signFailure:       signFailure,
		legacyMigrated:    legacyMigrated,
		legacyPassthrough: legacyPassthrough,
		deleteFailure:     deleteFailure,
	}
}

// ObserveUpload records the duration of one completed upload.
func (m *MediaMetrics) ObserveUpload(kind string, duration time.Duration) {
	if m == nil || m.uploadDuration == nil {
		return
	}
	m.uploadDuration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncUploadSuccess increments the success counter for the media kind.
func (m *MediaMetrics) IncUploadSuccess(kind string) {
	if m == nil || m.uploadSuccess == nil {
		return
	}
	m.uploadSuccess.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncUploadFailure increments the terminal failure counter for the media kind.
func (m *MediaMetrics) IncUploadFailure(kind string) {
	if m == nil || m.uploadFailure == nil {
		return
	}
	m.uploadFailure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncUploadRetry counts one failed attempt that will be retried.
func (m *MediaMetrics) IncUploadRetry(kind string) {
	if m == nil || m.uploadRetries == nil {
		return
	}
	m.uploadRetries.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSignRefresh counts one signed URL refresh with its trigger reason.
func (m *MediaMetrics) IncSignRefresh(reason string) {
	if m == nil || m.signRefresh == nil {
		return
	}
	m.signRefresh.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncSignFailure counts one refresh failure served from stale state.
func (m *MediaMetrics) IncSignFailure() {
	if m == nil || m.signFailure == nil {
		return
	}
	m.signFailure.Inc()
}

// IncLegacyMigrated counts one legacy reference upgrade.
func (m *MediaMetrics) IncLegacyMigrated() {
	if m == nil || m.legacyMigrated == nil {
		return
	}
	m.legacyMigrated.Inc()
}

// IncLegacyPassthrough counts one legacy URL served as-is, labeled by kind
// (cdn or presigned).
func (m *MediaMetrics) IncLegacyPassthrough(kind string) {
	if m == nil || m.legacyPassthrough == nil {
		return
	}
	m.legacyPassthrough.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDeleteFailure counts one cleanup deletion failure.
func (m *MediaMetrics) IncDeleteFailure() {
	if m == nil || m.deleteFailure == nil {
		return
	}
	m.deleteFailure.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
