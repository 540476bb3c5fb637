package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is created on first sighting of a canonical vendor name and never
// deleted - historical vulnerabilities keep pointing at it even if the vendor
// disappears from the upstream catalog.
type Vendor struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name          string    `json:"name" gorm:"type:text;not null;"`
	CanonicalName string    `json:"canonicalName" gorm:"type:text;not null;uniqueIndex;"`
	CreatedAt     time.Time `json:"createdAt"`

	Products []Product `json:"products,omitempty" gorm:"foreignKey:VendorID;"`
}

func (m Vendor) TableName() string {
	return "vendors"
}

// Product belongs to exactly one vendor. Unique on (vendor_id, canonical_name).
type Product struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	VendorID      uuid.UUID `json:"vendorId" gorm:"type:uuid;not null;uniqueIndex:idx_products_vendor_canonical;"`
	Name          string    `json:"name" gorm:"type:text;not null;"`
	CanonicalName string    `json:"canonicalName" gorm:"type:text;not null;uniqueIndex:idx_products_vendor_canonical;"`
	CreatedAt     time.Time `json:"createdAt"`

	Vendor *Vendor `json:"vendor,omitempty" gorm:"foreignKey:VendorID;"`
}

func (m Product) TableName() string {
	return "products"
}
