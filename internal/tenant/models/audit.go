package models

import (
	"time"

	"github.com/google/uuid"
)

// CleanupJobAudit records the outcome of one tenant's sweep in one cleanup run.
// It is persisted even when the sweep fails part way, with JobCompleted=false
// and the deletions reached so far.
type CleanupJobAudit struct {
	ID                   uuid.UUID  `json:"id"`
	TenantID             string     `json:"tenant_id"`
	TableName            string     `json:"table_name"`
	StartedAt            time.Time  `json:"started_at"`
	Cutoff               time.Time  `json:"cutoff"`
	TotalExistingRecords int64      `json:"total_existing_records"`
	EligibleRecords      int64      `json:"eligible_records"`
	TotalDeletedRecords  int64      `json:"total_deleted_records"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	JobCompleted         bool       `json:"job_completed"`
	Error                string     `json:"error,omitempty"`
}

// NewCleanupJobAudit starts an audit record for tenantID.
func NewCleanupJobAudit(tenantID, table string, startedAt, cutoff time.Time) *CleanupJobAudit {
	return &CleanupJobAudit{
		ID:        uuid.New(),
		TenantID:  tenantID,
		TableName: table,
		StartedAt: startedAt,
		Cutoff:    cutoff,
	}
}

// Complete marks the sweep successful.
func (a *CleanupJobAudit) Complete(deleted int64, at time.Time) {
	a.TotalDeletedRecords = deleted
	a.CompletedAt = &at
	a.JobCompleted = true
	a.Error = ""
}

// Fail records partial progress and the failure cause.
func (a *CleanupJobAudit) Fail(deleted int64, cause error) {
	a.TotalDeletedRecords = deleted
	a.JobCompleted = false
	if cause != nil {
		a.Error = cause.Error()
	}
}
