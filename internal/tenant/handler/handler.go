package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/refresh"
	"tenantgate/internal/tenant/tenantctx"
	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/httputil"
	"tenantgate/pkg/platform/middleware/admin"
	"tenantgate/pkg/platform/validation"
	"tenantgate/pkg/requestcontext"
)

// Reloader reloads the property file and applies the change.
type Reloader interface {
	Reload(ctx context.Context, trigger refresh.Trigger, extraKeys ...string) (refresh.Result, error)
}

// TenantDirectory is the read side of the tenant registry.
type TenantDirectory interface {
	Exists(tenantID string) bool
	AllTenantIDs() []string
	MultitenancyEnabled() bool
	DefaultTenantID() string
}

// PoolDirectory is the read side of the datasource registry.
type PoolDirectory interface {
	TenantIDs() []string
	Get(tenantID string) (*datasource.Entry, bool)
}

// AuditLister lists cleanup audits for the tenant bound on ctx.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]*models.CleanupJobAudit, error)
}

// CleanupTrigger runs the cleanup job out of schedule.
type CleanupTrigger interface {
	Trigger(ctx context.Context) bool
}

// Handler serves the operator endpoints under /admin.
type Handler struct {
	reloader  Reloader
	publisher refresh.Publisher
	tenants   TenantDirectory
	pools     PoolDirectory
	audits    AuditLister
	cleanup   CleanupTrigger
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPublisher enables ?broadcast=true on refresh.
func WithPublisher(p refresh.Publisher) Option {
	return func(h *Handler) {
		h.publisher = p
	}
}

// WithAudits enables the audit listing endpoint.
func WithAudits(a AuditLister) Option {
	return func(h *Handler) {
		h.audits = a
	}
}

// WithCleanup enables the manual cleanup endpoint.
func WithCleanup(c CleanupTrigger) Option {
	return func(h *Handler) {
		h.cleanup = c
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(reloader Reloader, tenants TenantDirectory, pools PoolDirectory, opts ...Option) *Handler {
	h := &Handler{
		reloader: reloader,
		tenants:  tenants,
		pools:    pools,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/refresh", h.HandleRefresh)
	r.Get("/admin/tenants", h.HandleListTenants)
	r.Get("/admin/tenants/{id}", h.HandleGetTenant)
	if h.audits != nil {
		r.Get("/admin/cleanup/audits", h.HandleListAudits)
	}
	if h.cleanup != nil {
		r.Post("/admin/cleanup/run", h.HandleRunCleanup)
	}
}

// HandleRefresh reloads the property file on this node and, with
// ?broadcast=true, tells every other node to do the same.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodySize)

	req, ok := httputil.DecodeOptionalJSON[RefreshRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.reloader.Reload(ctx, refresh.TriggerAdmin, req.Keys...)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin refresh failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "property reload failed"))
		return
	}

	resp := toRefreshResponse(res)
	if broadcast, _ := strconv.ParseBool(r.URL.Query().Get("broadcast")); broadcast {
		if h.publisher == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "broadcast is not configured"))
			return
		}
		if err := h.publisher.Publish(ctx, res.ChangedKeys); err != nil {
			h.logger.WarnContext(ctx, "refresh broadcast failed", "error", err, "request_id", requestID)
			resp.BroadcastError = err.Error()
		} else {
			resp.Broadcast = true
		}
	}

	h.logger.InfoContext(ctx, "admin refresh applied",
		"request_id", requestID,
		"actor", admin.ActorID(ctx),
		"changed_keys", len(res.ChangedKeys),
		"broadcast", resp.Broadcast,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListTenants returns configured tenants and their installed pools.
func (h *Handler) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	ids := h.tenants.AllTenantIDs()
	resp := &TenantListResponse{
		MultitenancyEnabled: h.tenants.MultitenancyEnabled(),
		DefaultTenant:       h.tenants.DefaultTenantID(),
		Tenants:             make([]TenantSummary, 0, len(ids)),
		Datasources:         make([]DatasourceResponse, 0, len(ids)),
	}
	for _, id := range ids {
		_, installed := h.pools.Get(id)
		resp.Tenants = append(resp.Tenants, TenantSummary{TenantID: id, Installed: installed})
	}
	for _, id := range h.pools.TenantIDs() {
		if e, ok := h.pools.Get(id); ok {
			resp.Datasources = append(resp.Datasources, toDatasourceResponse(e))
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetTenant returns one tenant's installed datasource.
func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	if !h.tenants.Exists(tenantID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "tenant not configured"))
		return
	}
	e, ok := h.pools.Get(tenantID)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "tenant datasource not installed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDatasourceResponse(e))
}

// HandleListAudits returns the most recent cleanup audits of one tenant.
func (h *Handler) HandleListAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &AuditQuery{
		TenantID: r.URL.Query().Get("tenant"),
		Limit:    validation.DefaultAuditLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		req.Limit = n
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.tenants.Exists(req.TenantID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "tenant not configured"))
		return
	}

	var audits []*models.CleanupJobAudit
	err := tenantctx.Run(ctx, req.TenantID, func(ctx context.Context) error {
		var err error
		audits, err = h.audits.List(ctx, req.Limit)
		return err
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "list cleanup audits failed",
			"error", err,
			"tenant_id", req.TenantID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AuditListResponse{TenantID: req.TenantID, Audits: audits})
}

// HandleRunCleanup runs the cleanup job now. A run already in progress is
// reported as a conflict.
func (h *Handler) HandleRunCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.cleanup.Trigger(context.WithoutCancel(ctx)) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "cleanup already running"))
		return
	}
	h.logger.InfoContext(ctx, "admin cleanup run completed", "actor", admin.ActorID(ctx))
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ran": true})
}
