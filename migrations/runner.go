package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"tenantgate/internal/platform/tracer"
	"tenantgate/internal/tenant/bootstrap"
	"tenantgate/pkg/validation"
)

const upSuffix = ".up.sql"

// Runner applies embedded SQL changelogs inside a tenant schema. Applied
// versions are recorded in <schema>.schema_migrations, and concurrent runs
// against the same schema are serialized with a transaction-scoped advisory lock.
type Runner struct {
	fsys   fs.FS
	logger *slog.Logger
	tracer tracer.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the span tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner returns a Runner reading changelogs from fsys.
func NewRunner(fsys fs.FS, opts ...Option) *Runner {
	r := &Runner{fsys: fsys, logger: slog.Default(), tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Migration is one changelog file.
type Migration struct {
	Version string
	Path    string
}

// Plan lists the migrations for changelog: shared files first, then the files
// under contexts/<tag>, each group in lexical order.
func (r *Runner) Plan(changelog, tag string) ([]Migration, error) {
	shared, err := r.list(changelog, "")
	if err != nil {
		return nil, err
	}
	if tag == "" || strings.ContainsAny(tag, `/\`) || tag == "." || tag == ".." {
		return shared, nil
	}
	tagged, err := r.list(path.Join(changelog, "contexts", tag), path.Join("contexts", tag))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return append(shared, tagged...), nil
}

func (r *Runner) list(dir, versionPrefix string) ([]Migration, error) {
	entries, err := fs.ReadDir(r.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read changelog %s: %w", dir, err)
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), upSuffix) {
			continue
		}
		out = append(out, Migration{
			Version: path.Join(versionPrefix, strings.TrimSuffix(e.Name(), upSuffix)),
			Path:    path.Join(dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Migrate implements bootstrap.MigrationRunner.
func (r *Runner) Migrate(ctx context.Context, req bootstrap.MigrationRequest) (err error) {
	if !validation.IsSchemaName(req.Schema) {
		return fmt.Errorf("%w: %q", bootstrap.ErrInvalidSchemaName, req.Schema)
	}
	plan, err := r.Plan(req.Changelog, req.ContextTag)
	if err != nil {
		return err
	}

	ctx, span := r.tracer.Start(ctx, "tenant.migrate",
		tracer.String("schema", req.Schema),
		tracer.String("changelog", req.Changelog),
	)
	defer func() { span.End(err) }()

	tx, err := req.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.Schema); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL search_path TO "%s"`, req.Schema)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range plan {
		if _, done := applied[m.Version]; done {
			continue
		}
		body, err := fs.ReadFile(r.fsys, m.Path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	span.SetAttributes(tracer.Int("applied", count))
	r.logger.InfoContext(ctx, "tenant_migrations_applied",
		"schema", req.Schema,
		"applied", count,
	)
	return nil
}

func appliedVersions(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]struct{}{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}
