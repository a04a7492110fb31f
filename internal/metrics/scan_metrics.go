package metrics

import (
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScanMetrics counts scan gate decisions and recorded scans
type ScanMetrics interface {
	IncScanAllowed(tier string)
	IncScanDenied(tier string)
	IncScanRecorded(tier string)
}

type scanMetrics struct {
	log           *logger.Logger
	scanDecisions *prometheus.CounterVec
	scansRecorded *prometheus.CounterVec
}

// NewScanMetrics creates new scan gate metrics
func NewScanMetrics(registry *prometheus.Registry, log *logger.Logger) ScanMetrics {
	scanDecisions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_gate_decisions_total",
			Help: "The total number of scan gate decisions by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	scansRecorded := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_recorded_total",
			Help: "The total number of recorded scans by tier",
		},
		[]string{"tier"},
	)

	return &scanMetrics{
		log:           log,
		scanDecisions: scanDecisions,
		scansRecorded: scansRecorded,
	}
}

// IncScanAllowed increments the allowed-decision counter
func (m *scanMetrics) IncScanAllowed(tier string) {
	m.scanDecisions.WithLabelValues(tier, "allowed").Inc()
}

// IncScanDenied increments the denied-decision counter
func (m *scanMetrics) IncScanDenied(tier string) {
	m.scanDecisions.WithLabelValues(tier, "denied").Inc()
}

// IncScanRecorded increments the recorded-scan counter
func (m *scanMetrics) IncScanRecorded(tier string) {
	m.scansRecorded.WithLabelValues(tier).Inc()
}
