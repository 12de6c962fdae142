package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/tenantctx"
	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/httputil"
)

// TenantHeader echoes the resolved tenant on successful responses.
const TenantHeader = "X-Tenant-ID"

// Filter is HTTP middleware that binds the resolved tenant to the request
// context for the duration of the downstream handler.
type Filter struct {
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithMetrics records resolution outcomes.
func WithMetrics(m *metrics.Metrics) FilterOption {
	return func(f *Filter) {
		f.metrics = m
	}
}

// NewFilter returns middleware backed by resolver.
func NewFilter(resolver *Resolver, opts ...FilterOption) *Filter {
	f := &Filter{resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Handler wraps next. Static paths pass through untouched; unresolvable
// requests are answered with a JSON error and never reach next.
func (f *Filter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.resolver.IsStatic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		res, err := f.resolver.Resolve(r)
		if err != nil {
			f.reject(w, r, err)
			return
		}

		err = tenantctx.Run(r.Context(), res.TenantID, func(ctx context.Context) error {
			f.metrics.IncResolution(string(res.Source), "resolved")
			w.Header().Set(TenantHeader, res.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return nil
		})
		if err != nil {
			f.logger.ErrorContext(r.Context(), "tenant_binding_failed",
				"tenant_id", res.TenantID,
				"source", string(res.Source),
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "tenant could not be bound"))
		}
	})
}

func (f *Filter) reject(w http.ResponseWriter, r *http.Request, err error) {
	var resErr *Error
	if !errors.As(err, &resErr) {
		f.logger.ErrorContext(r.Context(), "tenant resolution failed unexpectedly", "error", err)
		httputil.WriteError(w, err)
		return
	}

	status := f.resolver.cfg.InvalidStatus
	outcome := "invalid"
	if resErr.Code == dErrors.CodeTenantNotFoundInRequest {
		status = f.resolver.cfg.NotFoundStatus
		outcome = "not_found"
	}
	f.metrics.IncResolution("none", outcome)
	f.logger.WarnContext(r.Context(), "tenant_resolution_rejected",
		"code", string(resErr.Code),
		"tenant_id", resErr.TenantID,
		"path", resErr.Path,
	)
	httputil.WriteErrorWithParams(w, status, resErr.Code, resErr.Error(), resErr.Params())
}
