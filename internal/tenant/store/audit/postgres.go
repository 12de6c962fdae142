// Package audit persists cleanup job audit records in each tenant's database.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"tenantgate/internal/tenant/models"
)

const table = "cleanup_job_audit"

var columns = []string{
	"id", "tenant_id", "table_name", "started_at", "cutoff",
	"total_existing_records", "eligible_records", "total_deleted_records",
	"completed_at", "job_completed", "error",
}

// DBResolver returns the pool of the tenant bound to ctx.
type DBResolver interface {
	DB(ctx context.Context) (*sql.DB, error)
}

// PostgresStore writes audit rows through the current tenant's pool.
type PostgresStore struct {
	dbs DBResolver
	sql sq.StatementBuilderType
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(dbs DBResolver) *PostgresStore {
	return &PostgresStore{
		dbs: dbs,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Save inserts the audit record.
func (s *PostgresStore) Save(ctx context.Context, a *models.CleanupJobAudit) error {
	if a == nil {
		return fmt.Errorf("audit is required")
	}
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sql.Insert(table).
		Columns(columns...).
		Values(
			a.ID,
			a.TenantID,
			a.TableName,
			a.StartedAt,
			a.Cutoff,
			a.TotalExistingRecords,
			a.EligibleRecords,
			a.TotalDeletedRecords,
			a.CompletedAt,
			a.JobCompleted,
			sql.NullString{String: a.Error, Valid: a.Error != ""},
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert cleanup audit: %w", err)
	}
	return nil
}

// List returns the most recent audit records, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.CleanupJobAudit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sql.Select(columns...).
		From(table).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audits: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cleanup audits: %w", err)
	}
	defer rows.Close()

	var out []*models.CleanupJobAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleanup audits: %w", err)
	}
	return out, nil
}

func scanAudit(rows *sql.Rows) (*models.CleanupJobAudit, error) {
	var (
		a           models.CleanupJobAudit
		completedAt sql.NullTime
		errText     sql.NullString
	)
	err := rows.Scan(
		&a.ID,
		&a.TenantID,
		&a.TableName,
		&a.StartedAt,
		&a.Cutoff,
		&a.TotalExistingRecords,
		&a.EligibleRecords,
		&a.TotalDeletedRecords,
		&completedAt,
		&a.JobCompleted,
		&errText,
	)
	if err != nil {
		return nil, fmt.Errorf("scan cleanup audit: %w", err)
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	a.Error = errText.String
	return &a, nil
}
