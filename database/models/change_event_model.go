package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type ChangeKind string

const (
	ChangeKindCreated ChangeKind = "created"
	ChangeKindUpdated ChangeKind = "updated"
)

// ChangeEvent is the append-only audit trail of what a sync run did to a
// single vulnerability. Events are never updated or deleted.
type ChangeEvent struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	CVE       string    `json:"cveID" gorm:"column:cve_id;type:text;not null;index;"`
	SyncRunID uuid.UUID `json:"syncRunId" gorm:"type:uuid;not null;index;"`

	Kind          ChangeKind     `json:"kind" gorm:"type:text;not null;"`
	ChangedFields pq.StringArray `json:"changedFields" gorm:"type:text[];"`
	OldValues     datatypes.JSON `json:"oldValues" gorm:"type:jsonb;"`
	NewValues     datatypes.JSON `json:"newValues" gorm:"type:jsonb;"`

	CreatedAt time.Time `json:"createdAt"`

	Vulnerability *Vulnerability `json:"-" gorm:"foreignKey:CVE;references:CVE;"`
	SyncRun       *SyncRun       `json:"-" gorm:"foreignKey:SyncRunID;"`
}

func (m ChangeEvent) TableName() string {
	return "change_events"
}
