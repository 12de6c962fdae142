// Package token stores issued tokens per tenant and exposes the count and
// batch-delete operations the cleanup job sweeps with.
package token

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"

	"tenantgate/internal/tenant/models"
)

// DefaultTable is the token table created by the tenant changelog.
const DefaultTable = "oauth_tokens"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DBResolver returns the pool of the tenant bound to ctx.
type DBResolver interface {
	DB(ctx context.Context) (*sql.DB, error)
}

// PostgresStore reads and deletes tokens in the current tenant's database.
// Unqualified table names resolve through the pool's search_path.
type PostgresStore struct {
	dbs   DBResolver
	table string
	sql   sq.StatementBuilderType
}

// NewPostgres constructs a store over table. An empty table selects DefaultTable.
func NewPostgres(dbs DBResolver, table string) (*PostgresStore, error) {
	if dbs == nil {
		return nil, fmt.Errorf("db resolver is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid token table name %q", table)
	}
	return &PostgresStore{
		dbs:   dbs,
		table: table,
		sql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Table returns the swept table name.
func (s *PostgresStore) Table() string {
	return s.table
}

// Insert stores a token.
func (s *PostgresStore) Insert(ctx context.Context, t *models.Token) error {
	if t == nil {
		return fmt.Errorf("token is required")
	}
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sql.Insert(s.table).
		Columns("id", "client_id", "subject", "token_type", "issued_at", "expires_at").
		Values(t.ID, t.ClientID, t.Subject, t.TokenType, t.IssuedAt, t.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Count returns the number of stored tokens.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	return s.count(ctx, s.sql.Select("COUNT(*)").From(s.table))
}

// CountOlderThan returns the number of tokens that expired before cutoff.
func (s *PostgresStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count(ctx, s.sql.Select("COUNT(*)").From(s.table).Where(sq.Lt{"expires_at": cutoff}))
}

func (s *PostgresStore) count(ctx context.Context, q sq.SelectBuilder) (int64, error) {
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return 0, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}

// FindIDsOlderThan returns up to limit ids of tokens that expired before
// cutoff, oldest first.
func (s *PostgresStore) FindIDsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sql.Select("id").
		From(s.table).
		Where(sq.Lt{"expires_at": cutoff}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find expired: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find expired tokens: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan token id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired tokens: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes the given tokens.
func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sql.Delete(s.table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete tokens: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
