// Package monitor exports Prometheus metrics for the HTTP surface, the
// escrow engine, and the background scheduler.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type MonitorServiceInterface interface {
	GetMetricHttpHandler() http.Handler
	MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels)
	MonitorEscrowOperation(operation string)
	MonitorSchedulerRun(job string, err error)
}

var _ MonitorServiceInterface = (*MonitorService)(nil)

// MonitorService is the Prometheus-backed implementation. A nil
// MonitorService is valid and records nothing.
type MonitorService struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.SummaryVec
	escrowOperations    *prometheus.CounterVec
	schedulerRuns       *prometheus.CounterVec
}

func NewMonitorService() *MonitorService {
	registry := prometheus.NewRegistry()

	m := &MonitorService{
		registry: registry,
		httpRequestDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: "sabimarket", Subsystem: "http",
			Name: "request_duration_seconds", Help: "HTTP request durations.",
		}, []string{"status", "route", "method"}),
		escrowOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sabimarket", Subsystem: "escrow",
			Name: "operations_total", Help: "Escrow settlements by operation.",
		}, []string{"operation"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sabimarket", Subsystem: "scheduler",
			Name: "runs_total", Help: "Scheduler job runs by outcome.",
		}, []string{"job", "outcome"}),
	}

	registry.MustRegister(m.httpRequestDuration, m.escrowOperations, m.schedulerRuns)
	return m
}

func (m *MonitorService) GetMetricHttpHandler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MonitorService) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(labels.Status, labels.Route, labels.Method).Observe(duration.Seconds())
}

func (m *MonitorService) MonitorEscrowOperation(operation string) {
	if m == nil {
		return
	}
	m.escrowOperations.WithLabelValues(operation).Inc()
}

func (m *MonitorService) MonitorSchedulerRun(job string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.schedulerRuns.WithLabelValues(job, outcome).Inc()
}
