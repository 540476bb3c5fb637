package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusSucceeded SyncRunStatus = "succeeded"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerForced    SyncTrigger = "forced"
	SyncTriggerScheduled SyncTrigger = "scheduled"
)

// SyncRun records a single synchronization attempt against the upstream
// catalog. Rows are retained forever as history. At most one row may have
// InFlight set - enforced with a partial unique index, see the migrations.
//
// HeartbeatAt is bumped at every batch boundary. A run whose heartbeat is
// older than the lease window is considered dead (process crashed mid-run)
// and may be reclaimed by the next trigger.
type SyncRun struct {
	ID         uuid.UUID     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Status     SyncRunStatus `json:"status" gorm:"type:text;not null;default:'running';"`
	Trigger    SyncTrigger   `json:"trigger" gorm:"type:text;not null;default:'manual';"`
	InFlight   bool          `json:"inFlight" gorm:"not null;default:false;"`
	StartedAt  time.Time     `json:"startedAt" gorm:"index;"`
	FinishedAt *time.Time    `json:"finishedAt"`

	HeartbeatAt time.Time `json:"-"`

	CatalogVersion      string `json:"catalogVersion" gorm:"type:text;"`
	CatalogDateReleased string `json:"catalogDateReleased" gorm:"type:text;"`

	FetchedCount   int `json:"fetchedCount" gorm:"not null;default:0;"`
	InsertedCount  int `json:"insertedCount" gorm:"not null;default:0;"`
	UpdatedCount   int `json:"updatedCount" gorm:"not null;default:0;"`
	UnchangedCount int `json:"unchangedCount" gorm:"not null;default:0;"`
	SkippedCount   int `json:"skippedCount" gorm:"not null;default:0;"`

	ErrorMessage *string `json:"errorMessage,omitempty" gorm:"type:text;"`
}

func (m SyncRun) TableName() string {
	return "sync_runs"
}

// ProcessedCount is the number of catalog entries already handled. Skipped
// entries count too - rejecting an entry is handling it, and without them a
// run with skips could never reach 100%.
func (m SyncRun) ProcessedCount() int {
	return m.InsertedCount + m.UpdatedCount + m.UnchangedCount + m.SkippedCount
}

// Progress returns the run progress in percent, 0-100.
func (m SyncRun) Progress() int {
	if m.FetchedCount == 0 {
		if m.Status == SyncRunStatusSucceeded {
			return 100
		}
		return 0
	}
	p := m.ProcessedCount() * 100 / m.FetchedCount
	if p > 100 {
		p = 100
	}
	return p
}

func (m SyncRun) Terminal() bool {
	return m.Status == SyncRunStatusSucceeded || m.Status == SyncRunStatusFailed
}
