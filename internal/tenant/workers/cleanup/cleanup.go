package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gopkg.in/robfig/cron.v2"

	"tenantgate/internal/platform/tracer"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/tenantctx"
)

// auditSaveTimeout bounds the audit write, which no longer follows the sweep's cancellation.
const auditSaveTimeout = 5 * time.Second

//go:generate mockgen -source=cleanup.go -destination=mocks/mocks.go -package=mocks TenantLister,Repository,AuditStore

var (
	// ErrEnumeration means the tenant list could not be fetched. Only this
	// failure is retried.
	ErrEnumeration = errors.New("tenant enumeration failed")
	// ErrTenantCleanup wraps a failure while sweeping one tenant.
	ErrTenantCleanup = errors.New("tenant cleanup failed")
)

// TenantLister enumerates the tenants to sweep.
type TenantLister interface {
	TenantIDs(ctx context.Context) ([]string, error)
}

// Repository counts and deletes expired records of the tenant bound to ctx.
type Repository interface {
	Count(ctx context.Context) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	FindIDsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// AuditStore persists one audit record per tenant per run.
type AuditStore interface {
	Save(ctx context.Context, audit *models.CleanupJobAudit) error
}

// Summary reports the outcome of one run.
type Summary struct {
	Tenants   int
	Succeeded []string
	Failed    map[string]error
	Deleted   int64
}

// Job sweeps expired records from every tenant on a cron schedule.
type Job struct {
	tenants TenantLister
	repo    Repository
	audits  AuditStore

	schedule            string
	batchSize           int
	retention           time.Duration
	table               string
	enumerationAttempts int
	enumerationBackoff  time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	running atomic.Bool
}

// Option configures a Job.
type Option func(*Job)

// WithSchedule sets the six-field cron spec (seconds first) or a descriptor such as "@every 1h".
func WithSchedule(spec string) Option {
	return func(j *Job) {
		if spec != "" {
			j.schedule = spec
		}
	}
}

// WithBatchSize bounds how many records one delete statement removes.
func WithBatchSize(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

// WithRetentionDays sets how old a record must be before deletion.
func WithRetentionDays(days int) Option {
	return func(j *Job) {
		if days >= 0 {
			j.retention = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithTableName names the swept table in audit records.
func WithTableName(name string) Option {
	return func(j *Job) {
		if name != "" {
			j.table = name
		}
	}
}

// WithEnumerationRetry sets how often and how far apart tenant enumeration is attempted.
func WithEnumerationRetry(attempts int, backoff time.Duration) Option {
	return func(j *Job) {
		if attempts > 0 {
			j.enumerationAttempts = attempts
		}
		if backoff >= 0 {
			j.enumerationBackoff = backoff
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithTracer sets the span tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(j *Job) {
		j.tracer = t
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// New constructs a Job with required collaborators and options applied.
func New(tenants TenantLister, repo Repository, audits AuditStore, opts ...Option) (*Job, error) {
	if tenants == nil || repo == nil || audits == nil {
		return nil, fmt.Errorf("tenants, repo, and audits are required")
	}
	j := &Job{
		tenants:             tenants,
		repo:                repo,
		audits:              audits,
		schedule:            "0 0 2 * * *",
		batchSize:           500,
		retention:           30 * 24 * time.Hour,
		table:               "oauth_tokens",
		enumerationAttempts: 3,
		enumerationBackoff:  5 * time.Second,
		logger:              slog.Default(),
		tracer:              tracer.NewNoop(),
		now:                 time.Now,
		sleep:               sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	if _, err := cron.Parse(j.schedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", j.schedule, err)
	}
	return j, nil
}

// Start runs the job on its schedule until ctx is cancelled. A trigger that
// fires while a run is still in progress is skipped.
func (j *Job) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.Trigger(ctx) }); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	c.Start()
	defer c.Stop()

	j.logger.InfoContext(ctx, "tenant_cleanup_scheduled", "schedule", j.schedule)
	<-ctx.Done()
	return ctx.Err()
}

// Trigger runs the job once unless a run is already in progress. It reports
// whether the run happened.
func (j *Job) Trigger(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.WarnContext(ctx, "tenant_cleanup_skipped", "reason", "previous run still in progress")
		return false
	}
	defer j.running.Store(false)

	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.ErrorContext(ctx, "tenant_cleanup_failed", "error", err)
	}
	return true
}

// RunOnce sweeps every tenant once. Per-tenant failures are recorded in the
// summary and do not fail the run; only a failure to enumerate tenants does.
func (j *Job) RunOnce(ctx context.Context) (summary Summary, err error) {
	ctx, span := j.tracer.Start(ctx, "tenant.cleanup")
	defer func() {
		span.SetAttributes(
			tracer.Int("tenants", summary.Tenants),
			tracer.Int("failed", len(summary.Failed)),
			tracer.Int64("deleted", summary.Deleted),
		)
		span.End(err)
		j.metrics.IncCleanupRun(err)
	}()

	tenantIDs, err := j.enumerate(ctx)
	if err != nil {
		return summary, err
	}

	summary.Tenants = len(tenantIDs)
	summary.Failed = map[string]error{}
	for _, id := range tenantIDs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		deleted, err := j.sweepTenant(ctx, id)
		summary.Deleted += deleted
		j.metrics.AddCleanupDeleted(id, deleted)
		if err != nil {
			summary.Failed[id] = err
			j.metrics.IncCleanupTenantError(id)
			j.logger.ErrorContext(ctx, "tenant_cleanup_tenant_failed",
				"tenant_id", id,
				"deleted", deleted,
				"error", err,
			)
			continue
		}
		summary.Succeeded = append(summary.Succeeded, id)
	}

	j.logger.InfoContext(ctx, "tenant_cleanup_completed",
		"tenants", summary.Tenants,
		"failed", len(summary.Failed),
		"deleted", summary.Deleted,
	)
	return summary, nil
}

// enumerate fetches the tenant list.
func (j *Job) enumerate(ctx context.Context) ([]string, error) {
	var ids []string
	err := j.retryEnumeration(ctx, func() error {
		var err error
		ids, err = j.tenants.TenantIDs(ctx)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", ErrEnumeration, err)
		}
		return err
	})
	return ids, err
}

// retryEnumeration calls fn until it succeeds, fails with anything other than
// ErrEnumeration, or exhausts the configured attempts. Attempts are spaced by
// a fixed backoff.
func (j *Job) retryEnumeration(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrEnumeration) || attempt >= j.enumerationAttempts {
			return err
		}
		j.logger.WarnContext(ctx, "tenant_enumeration_retry",
			"attempt", attempt,
			"max_attempts", j.enumerationAttempts,
			"error", err,
		)
		if err := j.sleep(ctx, j.enumerationBackoff); err != nil {
			return err
		}
	}
}

// sweepTenant deletes expired records for one tenant in batches and persists
// an audit record whatever the outcome.
func (j *Job) sweepTenant(ctx context.Context, tenantID string) (int64, error) {
	var deleted int64
	err := tenantctx.Run(ctx, tenantID, func(ctx context.Context) error {
		start := j.now()
		audit := models.NewCleanupJobAudit(tenantID, j.table, start, start.Add(-j.retention))

		sweepErr := j.sweep(ctx, audit, &deleted)
		if sweepErr != nil {
			audit.Fail(deleted, sweepErr)
		} else {
			audit.Complete(deleted, j.now())
		}

		saveErr := j.saveAudit(ctx, audit)
		if sweepErr != nil {
			return errors.Join(fmt.Errorf("%w: tenant %s: %w", ErrTenantCleanup, tenantID, sweepErr), saveErr)
		}
		if saveErr != nil {
			return fmt.Errorf("%w: tenant %s: save audit: %w", ErrTenantCleanup, tenantID, saveErr)
		}
		j.logger.InfoContext(ctx, "tenant_cleanup_tenant_completed",
			"deleted", deleted,
			"existing", audit.TotalExistingRecords,
			"cutoff", audit.Cutoff,
		)
		return nil
	})
	return deleted, err
}

func (j *Job) sweep(ctx context.Context, audit *models.CleanupJobAudit, deleted *int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	total, err := j.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	audit.TotalExistingRecords = total

	eligible, err := j.repo.CountOlderThan(ctx, audit.Cutoff)
	if err != nil {
		return fmt.Errorf("count eligible records: %w", err)
	}
	audit.EligibleRecords = eligible

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := j.repo.FindIDsOlderThan(ctx, audit.Cutoff, j.batchSize)
		if err != nil {
			return fmt.Errorf("fetch batch: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := j.repo.DeleteByIDs(ctx, ids); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		*deleted += int64(len(ids))
	}
}

// saveAudit outlives a cancelled sweep so the progress made before shutdown
// is still recorded. The tenant binding on ctx is kept.
func (j *Job) saveAudit(ctx context.Context, audit *models.CleanupJobAudit) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditSaveTimeout)
	defer cancel()
	return j.audits.Save(ctx, audit)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
