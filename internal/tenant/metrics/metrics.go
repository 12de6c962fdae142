package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tenant subsystem's Prometheus collectors. All methods are
// safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	Resolutions         *prometheus.CounterVec
	DatasourceUpdates   *prometheus.CounterVec
	DatasourcesActive   prometheus.Gauge
	BootstrapDuration   *prometheus.HistogramVec
	CleanupRuns         *prometheus.CounterVec
	CleanupDeleted      *prometheus.CounterVec
	CleanupTenantErrors *prometheus.CounterVec
	RefreshEvents       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_tenant_resolutions_total",
			Help: "Tenant resolutions by winning source and outcome",
		}, []string{"source", "outcome"}),
		DatasourceUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_datasource_updates_total",
			Help: "Datasource registry mutations by operation and result",
		}, []string{"operation", "result"}),
		DatasourcesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenantgate_datasources_active",
			Help: "Number of tenant pools currently installed",
		}),
		BootstrapDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenantgate_schema_bootstrap_duration_seconds",
			Help:    "Duration of per-tenant schema bootstrap",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
		CleanupRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_cleanup_runs_total",
			Help: "Cleanup job runs by result",
		}, []string{"result"}),
		CleanupDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_cleanup_deleted_records_total",
			Help: "Records deleted by the cleanup job per tenant",
		}, []string{"tenant"}),
		CleanupTenantErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_cleanup_tenant_failures_total",
			Help: "Per-tenant cleanup failures",
		}, []string{"tenant"}),
		RefreshEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_refresh_events_total",
			Help: "Configuration refreshes by trigger and result",
		}, []string{"trigger", "result"}),
	}
}

// RegisterActiveScopes exposes the number of open tenant scopes as a gauge.
func RegisterActiveScopes(reg prometheus.Registerer, active func() int64) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tenantgate_tenant_scopes_active",
		Help: "Units of work currently bound to a tenant",
	}, func() float64 { return float64(active()) })
}

func (m *Metrics) IncResolution(source, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncDatasourceUpdate(operation string, err error) {
	if m == nil {
		return
	}
	m.DatasourceUpdates.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) SetDatasourcesActive(n int) {
	if m == nil {
		return
	}
	m.DatasourcesActive.Set(float64(n))
}

func (m *Metrics) ObserveBootstrap(start time.Time, err error) {
	if m == nil {
		return
	}
	m.BootstrapDuration.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncCleanupRun(err error) {
	if m == nil {
		return
	}
	m.CleanupRuns.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) AddCleanupDeleted(tenantID string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CleanupDeleted.WithLabelValues(tenantID).Add(float64(n))
}

func (m *Metrics) IncCleanupTenantError(tenantID string) {
	if m == nil {
		return
	}
	m.CleanupTenantErrors.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) IncRefresh(trigger string, err error) {
	if m == nil {
		return
	}
	m.RefreshEvents.WithLabelValues(trigger, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
