package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Options describes one pooled connection. Zero values fall back to DefaultOptions.
type Options struct {
	Driver                   string
	URL                      string
	Username                 string
	Password                 string
	MinIdleConns             int
	MaxOpenConns             int
	ConnectTimeout           time.Duration
	MaxIdleTime              time.Duration
	SearchPath               string
	StatementCacheCapacity   int
	DescriptionCacheCapacity int
}

// DefaultOptions returns sensible defaults for database configuration.
func DefaultOptions() Options {
	return Options{
		Driver:         DriverPgx,
		MinIdleConns:   2,
		MaxOpenConns:   10,
		ConnectTimeout: 5 * time.Second,
		MaxIdleTime:    10 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Driver == "" {
		o.Driver = d.Driver
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = d.MaxOpenConns
	}
	if o.MinIdleConns <= 0 {
		o.MinIdleConns = d.MinIdleConns
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.MaxIdleTime <= 0 {
		o.MaxIdleTime = d.MaxIdleTime
	}
	return o
}

// Pool wraps a *sql.DB with health checking capabilities.
type Pool struct {
	db   *sql.DB
	opts Options
}

// Open creates a connection pool and verifies it with a ping bounded by ConnectTimeout.
func Open(ctx context.Context, opts Options) (*Pool, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	opts = opts.withDefaults()
	if opts.Driver != DriverPgx && opts.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	dsn, err := BuildDSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(min(opts.MinIdleConns, opts.MaxOpenConns))
	db.SetConnMaxIdleTime(opts.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{db: db, opts: opts}, nil
}

// BuildDSN folds credentials and tuning options into the connection string.
// URL-form strings get query parameters; keyword/value strings get appended pairs.
func BuildDSN(opts Options) (string, error) {
	params := dsnParams(opts)

	if strings.HasPrefix(opts.URL, "postgres://") || strings.HasPrefix(opts.URL, "postgresql://") {
		u, err := url.Parse(opts.URL)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		if opts.Username != "" && u.User == nil {
			if opts.Password != "" {
				u.User = url.UserPassword(opts.Username, opts.Password)
			} else {
				u.User = url.User(opts.Username)
			}
		}
		q := u.Query()
		for _, p := range params {
			if q.Get(p[0]) == "" {
				q.Set(p[0], p[1])
			}
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(opts.URL))
	if opts.Username != "" && !strings.Contains(opts.URL, "user=") {
		params = append(params, [2]string{"user", opts.Username})
		if opts.Password != "" {
			params = append(params, [2]string{"password", opts.Password})
		}
	}
	for _, p := range params {
		if strings.Contains(opts.URL, p[0]+"=") {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(quoteValue(p[1]))
	}
	return b.String(), nil
}

func dsnParams(opts Options) [][2]string {
	var params [][2]string
	if opts.ConnectTimeout > 0 {
		secs := int(math.Ceil(opts.ConnectTimeout.Seconds()))
		params = append(params, [2]string{"connect_timeout", strconv.Itoa(max(secs, 1))})
	}
	if opts.SearchPath != "" {
		params = append(params, [2]string{"search_path", opts.SearchPath})
	}
	// Statement cache tuning is a pgx connection parameter; lib/pq would forward
	// it to the server as an unknown runtime setting.
	if opts.Driver == DriverPgx {
		if opts.StatementCacheCapacity > 0 {
			params = append(params, [2]string{"statement_cache_capacity", strconv.Itoa(opts.StatementCacheCapacity)})
		}
		if opts.DescriptionCacheCapacity > 0 {
			params = append(params, [2]string{"description_cache_capacity", strconv.Itoa(opts.DescriptionCacheCapacity)})
		}
	}
	return params
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DB returns the underlying *sql.DB for query operations.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Options returns the options the pool was opened with.
func (p *Pool) Options() Options {
	return p.opts
}

// Health checks if the database is reachable.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Stats returns database connection pool statistics.
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}
