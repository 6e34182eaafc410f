package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speechbot/speechbot/pkg/metrics"
)

type Metrics struct {
	apiResponseTime    *prometheus.HistogramVec
	apiErrorCounter    *prometheus.CounterVec
	generationTime     *prometheus.HistogramVec
	streamOutcome      *prometheus.CounterVec
	routerDroppedEvent *prometheus.CounterVec
	routerDisconnect   *prometheus.CounterVec
	outboxRetry        *prometheus.CounterVec
}

func NewMetrics(ns, system string) *Metrics {
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		apiResponseTime:    metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:    metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		generationTime:     metrics.NewHistogramVec("generation_time", nil),
		streamOutcome:      metrics.NewCounterVec("stream_outcome", []string{"state"}),
		routerDroppedEvent: metrics.NewCounterVec("router_dropped_event", []string{"type"}),
		routerDisconnect:   metrics.NewCounterVec("router_overflow_disconnect", nil),
		outboxRetry:        metrics.NewCounterVec("sync_replay_retry", []string{"kind"}),
	}

	return m
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) GenerationTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.generationTime.WithLabelValues())
}

func (m *Metrics) StreamOutcomeInc(state string) {
	m.streamOutcome.WithLabelValues(state).Inc()
}

func (m *Metrics) RouterDroppedEventInc(eventType string) {
	m.routerDroppedEvent.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RouterOverflowDisconnectInc() {
	m.routerDisconnect.WithLabelValues().Inc()
}

func (m *Metrics) SyncReplayRetryInc(kind string) {
	m.outboxRetry.WithLabelValues(kind).Inc()
}
