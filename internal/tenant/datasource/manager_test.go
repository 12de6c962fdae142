package datasource_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"maps"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tenantgate/internal/tenant/bootstrap"
	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/datasource/mocks"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/overlay"
	"tenantgate/internal/tenant/properties"
	"tenantgate/internal/tenant/registry"
)

type fakePools map[string]*datasource.Entry

func (p fakePools) Get(id string) (*datasource.Entry, bool) {
	e, ok := p[id]
	return e, ok
}

type ManagerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	installer *mocks.MockInstaller
	boot      *mocks.MockBootstrapper
	env       *properties.Environment
	pools     fakePools
	manager   *datasource.Manager
	ctx       context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

var baseProps = map[string]string{
	"tenant.multitenant.enabled":           "true",
	"tenant.ids":                           "A,B",
	"tenant-profile.default.max-pool-size": "10",
	"tenant-profile.A.url":                 "postgres://db/a",
	"tenant-profile.B.url":                 "postgres://db/b",
	"tenant-profile.B.max-pool-size":       "3",
}

func (s *ManagerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.installer = mocks.NewMockInstaller(s.ctrl)
	s.boot = mocks.NewMockBootstrapper(s.ctrl)
	s.ctx = context.Background()
	s.pools = fakePools{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.env = properties.NewEnvironment(baseProps)
	gen := overlay.New(s.env, overlay.WithLogger(logger))
	reg := registry.New(s.env, registry.WithLogger(logger))
	s.manager = datasource.NewManager(reg, s.installer, gen, s.env,
		datasource.WithManagerLogger(logger),
		datasource.WithBootstrapper(s.boot, s.pools),
	)

	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "A", gomock.Any()).Return(nil)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "B", gomock.Any()).Return(nil)
	s.pools["A"] = entry("A")
	s.pools["B"] = entry("B")
	s.boot.EXPECT().BootstrapAll(gomock.Any(), gomock.Len(2)).Return(nil)

	report := s.manager.Initialize(s.ctx)
	s.Equal([]string{"A", "B"}, report.Added)
}

func (s *ManagerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func entry(id string) *datasource.Entry {
	return &datasource.Entry{
		TenantID:   id,
		Handle:     fakeHandle{},
		Properties: models.DatabaseProperties{URL: "postgres://db/" + id, MaxPoolSize: 1},
	}
}

type fakeHandle struct{}

func (fakeHandle) DB() *sql.DB                  { return nil }
func (fakeHandle) Health(context.Context) error { return nil }
func (fakeHandle) Close() error                 { return nil }

func (s *ManagerSuite) change(mutate func(map[string]string)) []string {
	next := maps.Clone(s.env.Base())
	mutate(next)
	return s.env.ReplaceBase(next)
}

func (s *ManagerSuite) TestTenantListChangeAddsAndRemoves() {
	keys := s.change(func(m map[string]string) {
		m["tenant.ids"] = "A,C"
		delete(m, "tenant-profile.B.url")
		delete(m, "tenant-profile.B.max-pool-size")
		m["tenant-profile.C.url"] = "postgres://db/c"
	})

	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "C", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, props models.DatabaseProperties) error {
			s.Equal("postgres://db/c", props.URL)
			s.Equal(10, props.MaxPoolSize, "inherited from the default profile")
			s.pools["C"] = entry("C")
			return nil
		}).Times(1)
	s.installer.EXPECT().Remove(gomock.Any(), "B").Return(nil).Times(1)
	s.boot.EXPECT().BootstrapAll(gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, targets []bootstrap.Target) []bootstrap.Result {
			s.Equal("C", targets[0].TenantID)
			s.Equal("public", targets[0].Schema)
			return []bootstrap.Result{{TenantID: "C"}}
		})

	report := s.manager.HandleChange(s.ctx, keys)

	s.Equal([]string{"C"}, report.Added)
	s.Equal([]string{"B"}, report.Removed)
	s.Empty(report.Updated)
	s.Empty(report.Failed)
}

func (s *ManagerSuite) TestFailedAddStillRemoves() {
	keys := s.change(func(m map[string]string) {
		m["tenant.ids"] = "A,C"
		m["tenant-profile.C.url"] = "postgres://unreachable/c"
	})

	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "C", gomock.Any()).
		Return(errors.New("dial tcp: connection refused")).Times(1)
	s.installer.EXPECT().Remove(gomock.Any(), "B").Return(nil).Times(1)

	report := s.manager.HandleChange(s.ctx, keys)

	s.Equal([]string{"B"}, report.Removed)
	s.Contains(report.Failed, "C")
	s.Empty(report.Added)
}

func (s *ManagerSuite) TestAddedTenantWithoutURLIsSkipped() {
	keys := s.change(func(m map[string]string) {
		m["tenant.ids"] = "A,B,D"
	})

	report := s.manager.HandleChange(s.ctx, keys)

	s.Equal([]string{"D"}, report.Skipped)
	s.Empty(report.Added)
}

func (s *ManagerSuite) TestNonDatabaseKeyIsIgnored() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.A.feature-flag"] = "on"
	})
	s.Equal([]string{"tenant-profile.A.feature-flag"}, keys)

	report := s.manager.HandleChange(s.ctx, keys)

	s.Empty(report.Updated)
	s.Empty(report.Added)
}

func (s *ManagerSuite) TestMultipleKeysRebuildOnce() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.A.url"] = "postgres://db/a2"
		m["tenant-profile.A.username"] = "svc"
		m["tenant-profile.A.max-pool-size"] = "15"
	})
	s.Len(keys, 3)

	s.installer.EXPECT().Has("A").Return(true)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "A", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, props models.DatabaseProperties) error {
			s.Equal("postgres://db/a2", props.URL)
			s.Equal("svc", props.Username)
			s.Equal(15, props.MaxPoolSize)
			return nil
		}).Times(1)

	report := s.manager.HandleChange(s.ctx, keys)
	s.Equal([]string{"A"}, report.Updated)
}

func (s *ManagerSuite) TestUnknownTenantKeyIsIgnored() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.Z.url"] = "postgres://db/z"
	})

	report := s.manager.HandleChange(s.ctx, keys)
	s.Empty(report.Updated)
	s.Empty(report.Added)
}

func (s *ManagerSuite) TestDefaultTemplateChangeRebuildsInheritingTenants() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.default.max-pool-size"] = "25"
	})

	s.installer.EXPECT().Has("A").Return(true)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "A", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, props models.DatabaseProperties) error {
			s.Equal(25, props.MaxPoolSize)
			return nil
		})

	report := s.manager.HandleChange(s.ctx, keys)
	s.Equal([]string{"A"}, report.Updated, "B overrides max-pool-size and keeps its pool")
}

func (s *ManagerSuite) TestRemovedOverrideFallsBackToTemplate() {
	keys := s.change(func(m map[string]string) {
		delete(m, "tenant-profile.B.max-pool-size")
	})
	s.Equal([]string{"tenant-profile.B.max-pool-size"}, keys)

	s.installer.EXPECT().Has("B").Return(true)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "B", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, props models.DatabaseProperties) error {
			s.Equal(10, props.MaxPoolSize, "inherited from the default profile")
			return nil
		})

	report := s.manager.HandleChange(s.ctx, keys)
	s.Equal([]string{"B"}, report.Updated)
}

func (s *ManagerSuite) TestRemovedSchemaOverrideFallsBackToTemplate() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.default.default-schema"] = "tenant_schema"
		m["tenant-profile.A.default-schema"] = "a_schema"
	})
	s.installer.EXPECT().Has(gomock.Any()).Return(true).Times(2)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.manager.HandleChange(s.ctx, keys)

	keys = s.change(func(m map[string]string) {
		delete(m, "tenant-profile.A.default-schema")
	})

	s.installer.EXPECT().Has("A").Return(true)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "A", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, props models.DatabaseProperties) error {
			s.Equal("tenant_schema", props.DefaultSchema)
			return nil
		})

	report := s.manager.HandleChange(s.ctx, keys)
	s.Equal([]string{"A"}, report.Updated)
}

func (s *ManagerSuite) TestPreviouslySkippedTenantIsInstalledOnceConfigured() {
	keys := s.change(func(m map[string]string) { m["tenant.ids"] = "A,B,D" })
	s.manager.HandleChange(s.ctx, keys)

	keys = s.change(func(m map[string]string) { m["tenant-profile.D.url"] = "postgres://db/d" })
	s.installer.EXPECT().Has("D").Return(false)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "D", gomock.Any()).DoAndReturn(
		func(context.Context, string, models.DatabaseProperties) error {
			s.pools["D"] = entry("D")
			return nil
		})
	s.boot.EXPECT().BootstrapAll(gomock.Any(), gomock.Len(1)).Return(nil)

	report := s.manager.HandleChange(s.ctx, keys)
	s.Equal([]string{"D"}, report.Added)
}

func (s *ManagerSuite) TestPanicInOneTenantDoesNotStopOthers() {
	keys := s.change(func(m map[string]string) {
		m["tenant-profile.A.url"] = "postgres://db/a2"
		m["tenant-profile.B.url"] = "postgres://db/b2"
	})

	s.installer.EXPECT().Has("A").Return(true)
	s.installer.EXPECT().Has("B").Return(true)
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "A", gomock.Any()).DoAndReturn(
		func(context.Context, string, models.DatabaseProperties) error { panic("driver bug") })
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "B", gomock.Any()).Return(nil)

	report := s.manager.HandleChange(s.ctx, keys)

	s.Equal([]string{"B"}, report.Updated)
	s.Contains(report.Failed["A"], "driver bug")
}

func (s *ManagerSuite) TestBootstrapFailureIsReported() {
	keys := s.change(func(m map[string]string) {
		m["tenant.ids"] = "A,B,C"
		m["tenant-profile.C.url"] = "postgres://db/c"
	})
	s.installer.EXPECT().AddOrUpdate(gomock.Any(), "C", gomock.Any()).DoAndReturn(
		func(context.Context, string, models.DatabaseProperties) error {
			s.pools["C"] = entry("C")
			return nil
		})
	s.boot.EXPECT().BootstrapAll(gomock.Any(), gomock.Any()).Return([]bootstrap.Result{
		{TenantID: "C", Err: bootstrap.ErrSchemaBootstrap},
	})

	report := s.manager.HandleChange(s.ctx, keys)

	s.Equal([]string{"C"}, report.Added)
	s.Contains(report.Failed, "C")
}

func (s *ManagerSuite) TestMultitenancyFlagRefreshesRegistryOnly() {
	keys := s.change(func(m map[string]string) { m["tenant.multitenant.enabled"] = "false" })

	report := s.manager.HandleChange(s.ctx, keys)
	s.Empty(report.Added)
	s.Empty(report.Updated)
}
