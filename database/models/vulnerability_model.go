package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Vulnerability is one entry of the known-exploited-vulnerabilities catalog.
// The CVE identifier is the natural primary key. CVEID and DateAdded are
// immutable after creation; everything else may be rewritten by a later sync.
type Vulnerability struct {
	CVE       string    `json:"cveID" gorm:"column:cve_id;primaryKey;type:text;not null;"`
	VendorID  uuid.UUID `json:"vendorId" gorm:"type:uuid;not null;"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;"`

	VulnerabilityName  string          `json:"vulnerabilityName" gorm:"type:text;"`
	DateAdded          datatypes.Date  `json:"dateAdded" gorm:"type:date;index;" swaggertype:"string" format:"date"`
	ShortDescription   string          `json:"shortDescription" gorm:"type:text;"`
	RequiredAction     string          `json:"requiredAction" gorm:"type:text;"`
	DueDate            *datatypes.Date `json:"dueDate" gorm:"type:date;" swaggertype:"string" format:"date"`
	KnownRansomwareUse bool            `json:"knownRansomwareUse" gorm:"not null;default:false;"`
	Notes              string          `json:"notes" gorm:"type:text;"`
	CWEs               datatypes.JSON  `json:"cwes" gorm:"type:jsonb;"`

	// ContentHash fingerprints all mutable fields above. It is always kept
	// consistent with the stored values; a mismatch against a freshly
	// computed hash means the entry changed upstream.
	ContentHash  string    `json:"-" gorm:"type:text;not null;"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSyncedAt time.Time `json:"lastSyncedAt" gorm:"index;"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Vendor  *Vendor  `json:"vendor,omitempty" gorm:"foreignKey:VendorID;"`
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID;"`
}

func (m Vulnerability) TableName() string {
	return "vulnerabilities"
}
