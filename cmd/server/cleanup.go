package main

import (
	"fmt"
	"log/slog"

	"tenantgate/internal/platform/config"
	"tenantgate/internal/platform/tracer"
	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/registry"
	auditstore "tenantgate/internal/tenant/store/audit"
	tokenstore "tenantgate/internal/tenant/store/token"
	"tenantgate/internal/tenant/workers/cleanup"
)

func newCleanupJob(cfg *config.Server, tenants *registry.Registry, pools *datasource.Registry, m *metrics.Metrics, tr tracer.Tracer, log *slog.Logger) (*cleanup.Job, error) {
	tokens, err := tokenstore.NewPostgres(pools, cfg.Cleanup.TableName)
	if err != nil {
		return nil, fmt.Errorf("cleanup token store: %w", err)
	}
	job, err := cleanup.New(tenants, tokens, auditstore.NewPostgres(pools),
		cleanup.WithSchedule(cfg.Cleanup.Schedule),
		cleanup.WithBatchSize(cfg.Cleanup.BatchSize),
		cleanup.WithRetentionDays(cfg.Cleanup.RetentionDays),
		cleanup.WithTableName(tokens.Table()),
		cleanup.WithEnumerationRetry(cfg.Cleanup.EnumerationAttempts, cfg.Cleanup.EnumerationBackoff),
		cleanup.WithLogger(log),
		cleanup.WithMetrics(m),
		cleanup.WithTracer(tr),
	)
	if err != nil {
		return nil, fmt.Errorf("cleanup job: %w", err)
	}
	return job, nil
}
