package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type productRepository struct {
	db *gorm.DB
	*GormRepository[uuid.UUID, models.Product]
}

func NewProductRepository(db *gorm.DB) *productRepository {
	return &productRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.Product](db),
	}
}

func (g *productRepository) FindByVendorAndCanonicalName(tx *gorm.DB, vendorID uuid.UUID, canonicalName string) (models.Product, error) {
	var product models.Product
	err := g.GetDB(tx).First(&product, "vendor_id = ? AND canonical_name = ?", vendorID, canonicalName).Error
	return product, err
}

// UpsertByCanonicalName inserts or reads back the product with the same
// (vendor, canonical name) pair. The vendor must already exist.
func (g *productRepository) UpsertByCanonicalName(tx *gorm.DB, product *models.Product) error {
	db := g.GetDB(tx)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "canonical_name"}},
		DoNothing: true,
	}).Create(product).Error
	if err != nil {
		return err
	}

	if product.ID == uuid.Nil {
		existing, err := g.FindByVendorAndCanonicalName(tx, product.VendorID, product.CanonicalName)
		if err != nil {
			return err
		}
		*product = existing
	}
	return nil
}
