package datasource

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/pkg/platform/sentinel"
)

type stubHandle struct {
	db       *sql.DB
	url      string
	closed   atomic.Bool
	closeErr error
	pingErr  error
}

func (h *stubHandle) DB() *sql.DB                  { return h.db }
func (h *stubHandle) Health(context.Context) error { return h.pingErr }

func (h *stubHandle) Close() error {
	h.closed.Store(true)
	return h.closeErr
}

type stubOpener struct {
	mu      sync.Mutex
	opened  []*stubHandle
	failFor map[string]error
}

func (o *stubOpener) open(_ context.Context, tenantID string, props models.DatabaseProperties) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.failFor[tenantID]; err != nil {
		return nil, err
	}
	h := &stubHandle{db: &sql.DB{}, url: props.URL}
	o.opened = append(o.opened, h)
	return h, nil
}

func newTestRegistry(o *stubOpener) (*Registry, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewRegistry(
		WithOpener(o.open),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m),
	), m
}

func props(url string) models.DatabaseProperties {
	return models.DatabaseProperties{URL: url, MaxPoolSize: 5}
}

func TestAddOrUpdateInstallsAndReplaces(t *testing.T) {
	o := &stubOpener{}
	r, m := newTestRegistry(o)
	ctx := context.Background()

	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/v1")))
	first, ok := r.Get("acme")
	require.True(t, ok)

	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/v2")))
	second, ok := r.Get("acme")
	require.True(t, ok)

	assert.NotSame(t, first, second)
	assert.Equal(t, "postgres://db/v2", second.Properties.URL)
	assert.True(t, o.opened[0].closed.Load(), "replaced pool is closed")
	assert.False(t, o.opened[1].closed.Load())
	assert.Equal(t, "postgres://db/v1", first.Properties.URL, "old entry is never mutated")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasourceUpdates.WithLabelValues("update", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasourcesActive))
}

func TestAddOrUpdateKeepsPreviousPoolOnFailure(t *testing.T) {
	o := &stubOpener{failFor: map[string]error{}}
	r, _ := newTestRegistry(o)
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/v1")))

	o.failFor["acme"] = errors.New("password authentication failed")
	err := r.AddOrUpdate(ctx, "acme", props("postgres://db/v2"))

	assert.ErrorIs(t, err, ErrDatasourceUpdate)
	e, ok := r.Get("acme")
	require.True(t, ok)
	assert.Equal(t, "postgres://db/v1", e.Properties.URL)
	assert.False(t, o.opened[0].closed.Load())
}

func TestAddOrUpdateValidates(t *testing.T) {
	r, _ := newTestRegistry(&stubOpener{})

	err := r.AddOrUpdate(context.Background(), "acme", models.DatabaseProperties{MaxPoolSize: 1})
	assert.ErrorIs(t, err, ErrDatasourceUpdate)
	assert.False(t, r.Has("acme"))

	err = r.AddOrUpdate(context.Background(), "", props("postgres://db"))
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)
}

func TestRemove(t *testing.T) {
	o := &stubOpener{}
	r, _ := newTestRegistry(o)
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/acme")))
	require.NoError(t, r.AddOrUpdate(ctx, "globex", props("postgres://db/globex")))

	require.NoError(t, r.Remove(ctx, "acme"))
	assert.False(t, r.Has("acme"))
	assert.True(t, o.opened[0].closed.Load())
	assert.Equal(t, []string{"globex"}, r.TenantIDs())

	assert.NoError(t, r.Remove(ctx, "acme"), "removing twice is a no-op")
}

func TestRemoveReportsCloseFailure(t *testing.T) {
	o := &stubOpener{}
	r, _ := newTestRegistry(o)
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/acme")))
	o.opened[0].closeErr = errors.New("close timeout")

	err := r.Remove(ctx, "acme")
	assert.ErrorIs(t, err, ErrDatasourceUpdate)
	assert.False(t, r.Has("acme"), "entry is gone even when close fails")
}

func TestDBRoutesByTenantContext(t *testing.T) {
	o := &stubOpener{}
	r, _ := newTestRegistry(o)
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/acme")))
	require.NoError(t, r.AddOrUpdate(ctx, "globex", props("postgres://db/globex")))

	err := tenantctx.Run(ctx, "globex", func(ctx context.Context) error {
		db, err := r.DB(ctx)
		require.NoError(t, err)
		assert.Same(t, o.opened[1].db, db)
		return nil
	})
	require.NoError(t, err)

	_, err = r.DB(ctx)
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)

	err = tenantctx.Run(ctx, "initech", func(ctx context.Context) error {
		_, err := r.DB(ctx)
		return err
	})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestHealthAndClose(t *testing.T) {
	o := &stubOpener{}
	r, _ := newTestRegistry(o)
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/acme")))
	require.NoError(t, r.AddOrUpdate(ctx, "globex", props("postgres://db/globex")))
	o.opened[1].pingErr = errors.New("down")

	health := r.Health(ctx)
	assert.NoError(t, health["acme"])
	assert.EqualError(t, health["globex"], "down")

	require.NoError(t, r.Close())
	assert.Empty(t, r.TenantIDs())
	assert.True(t, o.opened[0].closed.Load())
	assert.True(t, o.opened[1].closed.Load())
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	r, _ := newTestRegistry(&stubOpener{})
	ctx := context.Background()
	require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/0")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if e, ok := r.Get("acme"); ok {
					assert.NotEmpty(t, e.Properties.URL)
					assert.NotNil(t, e.Handle)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, r.AddOrUpdate(ctx, "acme", props("postgres://db/n")))
	}
	close(stop)
	wg.Wait()
}

func TestToOptions(t *testing.T) {
	opts := ToOptions(models.DatabaseProperties{
		URL:                    "postgres://db/acme",
		Driver:                 "postgres",
		MinPoolSize:            2,
		MaxPoolSize:            8,
		DefaultSchema:          "acme_app",
		StatementCacheCapacity: 128,
	})
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, 8, opts.MaxOpenConns)
	assert.Equal(t, "acme_app", opts.SearchPath)
	assert.Equal(t, 128, opts.StatementCacheCapacity)
}
