package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/properties"
	"tenantgate/internal/tenant/refresh"
	"tenantgate/internal/tenant/registry"
	auditstore "tenantgate/internal/tenant/store/audit"
	"tenantgate/internal/tenant/tenantctx"
	adminmw "tenantgate/pkg/platform/middleware/admin"
	"tenantgate/pkg/testutil"
)

const adminToken = "secret-token"

type fakeReloader struct {
	mu    sync.Mutex
	calls [][]string
	res   refresh.Result
	err   error
}

func (f *fakeReloader) Reload(_ context.Context, trigger refresh.Trigger, extra ...string) (refresh.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if trigger != refresh.TriggerAdmin {
		return refresh.Result{}, errors.New("unexpected trigger " + string(trigger))
	}
	f.calls = append(f.calls, extra)
	return f.res, f.err
}

type fakePublisher struct {
	keys [][]string
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, keys []string) error {
	f.keys = append(f.keys, keys)
	return f.err
}

type fakePools map[string]*datasource.Entry

func (p fakePools) TenantIDs() []string {
	out := make([]string, 0, len(p))
	for _, id := range []string{"acme", "globex", "initech"} {
		if _, ok := p[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (p fakePools) Get(id string) (*datasource.Entry, bool) {
	e, ok := p[id]
	return e, ok
}

type fakeCleanup struct {
	ran bool
}

func (f *fakeCleanup) Trigger(context.Context) bool {
	if f.ran {
		return false
	}
	f.ran = true
	return true
}

type HandlerSuite struct {
	suite.Suite
	reloader  *fakeReloader
	publisher *fakePublisher
	audits    *auditstore.InMemory
	cleanup   *fakeCleanup
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	env := properties.NewEnvironment(testutil.NewProperties().
		WithDefault("acme").
		WithTenants("acme", "globex").
		WithDatabase("acme", "postgres://db/acme", "acme_app").
		WithDatabase("globex", "postgres://db/globex", "").
		Build())
	tenants := registry.Load(env)

	installed := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	pools := fakePools{
		"acme": {
			TenantID: "acme",
			Properties: models.DatabaseProperties{
				URL:           "postgres://admin:hunter2@db/acme",
				Password:      "hunter2",
				Driver:        "pgx",
				DefaultSchema: "acme_app",
				MaxPoolSize:   10,
			},
			InstalledAt: installed,
		},
	}

	s.reloader = &fakeReloader{res: refresh.Result{
		ChangedKeys: []string{"tenant.ids"},
		Report:      datasource.ChangeReport{Added: []string{"globex"}},
	}}
	s.publisher = &fakePublisher{}
	s.audits = auditstore.NewInMemory()
	s.cleanup = &fakeCleanup{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.reloader, tenants, pools,
		WithPublisher(s.publisher),
		WithAudits(s.audits),
		WithCleanup(s.cleanup),
		WithLogger(logger),
	)
	r := chi.NewRouter()
	r.Use(adminmw.RequireAdminToken(adminToken, logger))
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v))
}

func (s *HandlerSuite) TestAdminTokenRequired() {
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRefreshReturnsChangedKeys() {
	rec := s.do(http.MethodPost, "/admin/refresh", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp RefreshResponse
	s.decode(rec, &resp)
	s.Equal([]string{"tenant.ids"}, resp.ChangedKeys)
	s.Equal([]string{"globex"}, resp.Report.Added)
	s.False(resp.Broadcast)
	s.Empty(s.publisher.keys)
}

func (s *HandlerSuite) TestRefreshForwardsExtraKeys() {
	rec := s.do(http.MethodPost, "/admin/refresh", `{"keys":[" tenant-profile.acme.url ","tenant-profile.acme.url",""]}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal([][]string{{"tenant-profile.acme.url"}}, s.reloader.calls)
}

func (s *HandlerSuite) TestRefreshEmptyChangeIsEmptyArray() {
	s.reloader.res = refresh.Result{}
	rec := s.do(http.MethodPost, "/admin/refresh", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"changed_keys":[]`)
}

func (s *HandlerSuite) TestRefreshBroadcast() {
	rec := s.do(http.MethodPost, "/admin/refresh?broadcast=true", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp RefreshResponse
	s.decode(rec, &resp)
	s.True(resp.Broadcast)
	s.Equal([][]string{{"tenant.ids"}}, s.publisher.keys)
}

func (s *HandlerSuite) TestRefreshBroadcastFailureKeepsLocalResult() {
	s.publisher.err = errors.New("redis: connection refused")
	rec := s.do(http.MethodPost, "/admin/refresh?broadcast=true", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp RefreshResponse
	s.decode(rec, &resp)
	s.False(resp.Broadcast)
	s.Contains(resp.BroadcastError, "connection refused")
	s.Equal([]string{"tenant.ids"}, resp.ChangedKeys)
}

func (s *HandlerSuite) TestRefreshLoadFailure() {
	s.reloader.err = errors.New("yaml: line 3: did not find expected key")
	rec := s.do(http.MethodPost, "/admin/refresh", "")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(rec.Body.String(), "property reload failed")
}

func (s *HandlerSuite) TestRefreshRejectsMalformedBody() {
	rec := s.do(http.MethodPost, "/admin/refresh", `{"keys":`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.reloader.calls)
}

func (s *HandlerSuite) TestListTenants() {
	rec := s.do(http.MethodGet, "/admin/tenants", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp TenantListResponse
	s.decode(rec, &resp)
	s.True(resp.MultitenancyEnabled)
	s.Equal("acme", resp.DefaultTenant)
	s.Equal([]TenantSummary{
		{TenantID: "acme", Installed: true},
		{TenantID: "globex", Installed: false},
	}, resp.Tenants)
	s.Require().Len(resp.Datasources, 1)
	s.Equal("acme_app", resp.Datasources[0].DefaultSchema)
	s.NotContains(rec.Body.String(), "hunter2")
}

func (s *HandlerSuite) TestGetTenant() {
	s.Run("installed", func() {
		rec := s.do(http.MethodGet, "/admin/tenants/acme", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp DatasourceResponse
		s.decode(rec, &resp)
		s.Equal("pgx", resp.Driver)
		s.Equal(10, resp.MaxPoolSize)
	})

	s.Run("configured but not installed", func() {
		rec := s.do(http.MethodGet, "/admin/tenants/globex", "")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	s.Run("unknown", func() {
		rec := s.do(http.MethodGet, "/admin/tenants/umbrella", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestListAudits() {
	started := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	err := tenantctx.Run(context.Background(), "acme", func(ctx context.Context) error {
		for i := range 3 {
			a := models.NewCleanupJobAudit("acme", "oauth_tokens", started.Add(time.Duration(i)*time.Hour), started)
			a.Complete(int64(i), started)
			if err := s.audits.Save(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/admin/cleanup/audits?tenant=acme&limit=2", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp AuditListResponse
	s.decode(rec, &resp)
	s.Equal("acme", resp.TenantID)
	s.Require().Len(resp.Audits, 2)
	s.Equal(int64(2), resp.Audits[0].TotalDeletedRecords)

	rec = s.do(http.MethodGet, "/admin/cleanup/audits?tenant=globex", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &resp)
	s.Empty(resp.Audits)
}

func (s *HandlerSuite) TestListAuditsValidation() {
	cases := map[string]int{
		"/admin/cleanup/audits":                       http.StatusBadRequest,
		"/admin/cleanup/audits?tenant=acme&limit=x":   http.StatusBadRequest,
		"/admin/cleanup/audits?tenant=acme&limit=0":   http.StatusBadRequest,
		"/admin/cleanup/audits?tenant=acme&limit=501": http.StatusBadRequest,
		"/admin/cleanup/audits?tenant=umbrella":       http.StatusNotFound,
		"/admin/cleanup/audits?tenant=acme&limit=500": http.StatusOK,
	}
	for target, status := range cases {
		s.Run(target, func() {
			s.Equal(status, s.do(http.MethodGet, target, "").Code)
		})
	}
}

func (s *HandlerSuite) TestRunCleanup() {
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/admin/cleanup/run", "").Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/admin/cleanup/run", "").Code)
}

func TestOptionalRoutesAreNotRegistered(t *testing.T) {
	env := properties.NewEnvironment(testutil.NewProperties().WithTenants("acme").Build())
	h := New(&fakeReloader{}, registry.Load(env), fakePools{})
	r := chi.NewRouter()
	h.Register(r)

	for _, target := range []string{"/admin/cleanup/audits?tenant=acme", "/admin/cleanup/run"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: got %d", target, rec.Code)
		}
	}
}
