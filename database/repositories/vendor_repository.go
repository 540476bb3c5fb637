package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type vendorRepository struct {
	db *gorm.DB
	*GormRepository[uuid.UUID, models.Vendor]
}

func NewVendorRepository(db *gorm.DB) *vendorRepository {
	return &vendorRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.Vendor](db),
	}
}

func (g *vendorRepository) FindByCanonicalName(tx *gorm.DB, canonicalName string) (models.Vendor, error) {
	var vendor models.Vendor
	err := g.GetDB(tx).First(&vendor, "canonical_name = ?", canonicalName).Error
	return vendor, err
}

// UpsertByCanonicalName is an insert-or-get keyed on the canonical name.
// Two batches referencing the same new vendor must not race into a
// duplicate, thus ON CONFLICT DO NOTHING followed by a read-back.
func (g *vendorRepository) UpsertByCanonicalName(tx *gorm.DB, vendor *models.Vendor) error {
	db := g.GetDB(tx)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_name"}},
		DoNothing: true,
	}).Create(vendor).Error
	if err != nil {
		return err
	}

	// a conflict leaves the struct without an ID - read the winning row back
	if vendor.ID == uuid.Nil {
		existing, err := g.FindByCanonicalName(tx, vendor.CanonicalName)
		if err != nil {
			return err
		}
		*vendor = existing
	}
	return nil
}

func (g *vendorRepository) ListWithCounts() ([]dtos.VendorSummary, error) {
	var summaries []dtos.VendorSummary
	err := g.db.Model(&models.Vendor{}).
		Select(`vendors.id, vendors.name,
			count(distinct products.id) as product_count,
			count(distinct vulnerabilities.cve_id) as vulnerability_count`).
		Joins("LEFT JOIN products ON products.vendor_id = vendors.id").
		Joins("LEFT JOIN vulnerabilities ON vulnerabilities.vendor_id = vendors.id").
		Group("vendors.id, vendors.name").
		Order("vulnerability_count DESC").
		Scan(&summaries).Error
	return summaries, err
}
