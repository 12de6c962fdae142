//go:build integration

package tenant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tenantgate/internal/tenant/bootstrap"
	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/overlay"
	"tenantgate/internal/tenant/properties"
	"tenantgate/internal/tenant/registry"
	"tenantgate/internal/tenant/store/audit"
	"tenantgate/internal/tenant/store/token"
	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/internal/tenant/workers/cleanup"
	"tenantgate/migrations"
	"tenantgate/pkg/testutil"
	"tenantgate/pkg/testutil/containers"
)

type LifecycleSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	env      *properties.Environment
	tenants  *registry.Registry
	pools    *datasource.Registry
	manager  *datasource.Manager
	boot     *bootstrap.Bootstrapper
	tokens   *token.PostgresStore
	audits   *audit.PostgresStore
	logger   *slog.Logger
	baseline map[string]string
}

func TestLifecycleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupSuite() {
	s.pg = containers.Postgres(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *LifecycleSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.DropSchemas(ctx, "acme_app", "globex_app"))

	s.baseline = testutil.NewProperties().
		WithTenants("acme", "globex").
		WithDefault("acme").
		WithTemplate(models.PropMaxPoolSize, "4").
		WithDatabase("acme", s.pg.DSN, "acme_app").
		WithDatabase("globex", s.pg.DSN, "globex_app").
		Build()
	s.env = properties.NewEnvironment(s.baseline)
	s.tenants = registry.New(s.env, registry.WithLogger(s.logger))
	s.pools = datasource.NewRegistry(datasource.WithLogger(s.logger))
	s.boot = bootstrap.New(migrations.NewRunner(migrations.FS), "tenant", bootstrap.WithLogger(s.logger))
	s.manager = datasource.NewManager(s.tenants, s.pools, overlay.New(s.env), s.env,
		datasource.WithManagerLogger(s.logger),
		datasource.WithBootstrapper(s.boot, s.pools),
	)

	var err error
	s.tokens, err = token.NewPostgres(s.pools, "")
	s.Require().NoError(err)
	s.audits = audit.NewPostgres(s.pools)
}

func (s *LifecycleSuite) TearDownTest() {
	s.NoError(s.pools.Close())
}

func (s *LifecycleSuite) TestInitializeBootstrapsEveryTenantSchema() {
	ctx := context.Background()

	report := s.manager.Initialize(ctx)

	s.Empty(report.Failed)
	s.Equal([]string{"acme", "globex"}, report.Added)
	for _, schema := range []string{"acme_app", "globex_app"} {
		n, err := s.pg.CountRows(ctx, schema, "oauth_tokens")
		s.Require().NoError(err)
		s.Equal(int64(0), n)
	}

	entry, ok := s.pools.Get("globex")
	s.Require().True(ok)
	s.Equal(4, entry.Properties.MaxPoolSize, "pool size is inherited from the default profile")
}

func (s *LifecycleSuite) TestBootstrapIsIdempotent() {
	ctx := context.Background()
	s.Require().Empty(s.manager.Initialize(ctx).Failed)

	entry, ok := s.pools.Get("acme")
	s.Require().True(ok)
	results := s.boot.BootstrapAll(ctx, []bootstrap.Target{
		{TenantID: "acme", DB: entry.Handle.DB(), Schema: "acme_app"},
		{TenantID: "acme", DB: entry.Handle.DB(), Schema: "acme_app"},
	})
	s.Empty(bootstrap.Failed(results))

	var applied int
	err := s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "acme_app".schema_migrations`).Scan(&applied)
	s.Require().NoError(err)
	s.Equal(2, applied)
}

func (s *LifecycleSuite) TestCleanupSweepsOnlyExpiredTokensPerTenant() {
	ctx := context.Background()
	s.Require().Empty(s.manager.Initialize(ctx).Failed)

	now := time.Now().UTC()
	s.seedTokens("acme", 250, now.AddDate(0, 0, -40))
	s.seedTokens("acme", 10, now.Add(time.Hour))
	s.seedTokens("globex", 5, now.AddDate(0, 0, -31))

	job, err := cleanup.New(s.tenants, s.tokens, s.audits,
		cleanup.WithLogger(s.logger),
		cleanup.WithBatchSize(100),
		cleanup.WithRetentionDays(30),
	)
	s.Require().NoError(err)

	summary, err := job.RunOnce(ctx)
	s.Require().NoError(err)
	s.Empty(summary.Failed)
	s.Equal(int64(255), summary.Deleted)

	n, err := s.pg.CountRows(ctx, "acme_app", "oauth_tokens")
	s.Require().NoError(err)
	s.Equal(int64(10), n)

	err = tenantctx.Run(ctx, "acme", func(ctx context.Context) error {
		records, err := s.audits.List(ctx, 5)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.True(records[0].JobCompleted)
		s.Equal(int64(260), records[0].TotalExistingRecords)
		s.Equal(int64(250), records[0].TotalDeletedRecords)
		return nil
	})
	s.Require().NoError(err)
}

func (s *LifecycleSuite) TestRemovedTenantPoolIsClosed() {
	ctx := context.Background()
	s.Require().Empty(s.manager.Initialize(ctx).Failed)

	next := testutil.NewProperties().
		WithTenants("acme").
		WithDefault("acme").
		WithTemplate(models.PropMaxPoolSize, "4").
		WithDatabase("acme", s.pg.DSN, "acme_app").
		Build()
	report := s.manager.HandleChange(ctx, s.env.ReplaceBase(next))

	s.Equal([]string{"globex"}, report.Removed)
	s.False(s.pools.Has("globex"))
	s.True(s.pools.Has("acme"))

	err := tenantctx.Run(ctx, "globex", func(ctx context.Context) error {
		_, err := s.tokens.Count(ctx)
		return err
	})
	s.Error(err)
}

func (s *LifecycleSuite) seedTokens(tenantID string, n int, expiresAt time.Time) {
	err := tenantctx.Run(context.Background(), tenantID, func(ctx context.Context) error {
		for range n {
			err := s.tokens.Insert(ctx, &models.Token{
				ID:        uuid.New(),
				ClientID:  "web",
				TokenType: "access",
				IssuedAt:  expiresAt.Add(-time.Hour),
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *LifecycleSuite) TestConcurrentReadsDuringRebuild() {
	ctx := context.Background()
	s.Require().Empty(s.manager.Initialize(ctx).Failed)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 5 {
			next := testutil.NewProperties().
				WithTenants("acme", "globex").
				WithDefault("acme").
				WithTemplate(models.PropMaxPoolSize, "4").
				WithDatabase("acme", s.pg.DSN, "acme_app").
				WithDatabase("globex", s.pg.DSN, "globex_app").
				WithProfile("acme", models.PropMaxIdleTime, time.Duration(i+1).String()+"m").
				Build()
			s.manager.HandleChange(ctx, s.env.ReplaceBase(next))
		}
	}()

	result := testutil.RunConcurrent(50, func(int) error {
		return tenantctx.Run(ctx, "acme", func(ctx context.Context) error {
			_, err := s.tokens.Count(ctx)
			return err
		})
	})
	<-done

	// A query may race a pool being closed, but routing never loses the tenant.
	s.Equal(int32(50), result.Total())
	s.Zero(result.NotFounds)
	s.Zero(result.NoTenant)
}
