package repositories

import (
	"time"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/shared"
	"gorm.io/gorm"
)

type vulnerabilityRepository struct {
	db *gorm.DB
	*GormRepository[string, models.Vulnerability]
}

func NewVulnerabilityRepository(db *gorm.DB) *vulnerabilityRepository {
	return &vulnerabilityRepository{
		db:             db,
		GormRepository: newGormRepository[string, models.Vulnerability](db),
	}
}

func (g *vulnerabilityRepository) FindByCVE(tx *gorm.DB, cveID string) (models.Vulnerability, error) {
	var t models.Vulnerability
	err := g.GetDB(tx).Preload("Vendor").Preload("Product").First(&t, "cve_id = ?", cveID).Error
	return t, err
}

func (g *vulnerabilityRepository) FindAllByCVEs(tx *gorm.DB, cveIDs []string) ([]models.Vulnerability, error) {
	if len(cveIDs) == 0 {
		return []models.Vulnerability{}, nil
	}
	var ts []models.Vulnerability
	err := g.GetDB(tx).Find(&ts, "cve_id IN ?", cveIDs).Error
	return ts, err
}

func (g *vulnerabilityRepository) FindAllPaged(pageInfo shared.PageInfo, filter dtos.VulnerabilityFilter) (shared.Paged[models.Vulnerability], error) {
	query := g.db.Model(&models.Vulnerability{}).
		Joins("LEFT JOIN vendors ON vendors.id = vulnerabilities.vendor_id").
		Joins("LEFT JOIN products ON products.id = vulnerabilities.product_id")

	if filter.Vendor != "" {
		query = query.Where("vendors.name ILIKE ?", "%"+filter.Vendor+"%")
	}
	if filter.Product != "" {
		query = query.Where("products.name ILIKE ?", "%"+filter.Product+"%")
	}
	if filter.RansomwareOnly {
		query = query.Where("vulnerabilities.known_ransomware_use = ?", true)
	}
	if filter.DateFrom != nil {
		query = query.Where("vulnerabilities.date_added >= ?", filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("vulnerabilities.date_added <= ?", filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paged[models.Vulnerability]{}, err
	}

	var sortColumn string
	switch filter.SortBy {
	case "cveID":
		sortColumn = "vulnerabilities.cve_id"
	case "vendor":
		sortColumn = "vendors.name"
	default:
		sortColumn = "vulnerabilities.date_added"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}

	var vulns []models.Vulnerability
	err := pageInfo.ApplyOnDB(query.Order(sortColumn + " " + order)).
		Preload("Vendor").Preload("Product").
		Find(&vulns).Error
	if err != nil {
		return shared.Paged[models.Vulnerability]{}, err
	}

	return shared.NewPaged(pageInfo, total, vulns), nil
}

func (g *vulnerabilityRepository) Stats() (dtos.VulnerabilityStats, error) {
	var stats dtos.VulnerabilityStats

	if err := g.db.Model(&models.Vulnerability{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := g.db.Model(&models.Vulnerability{}).Where("known_ransomware_use = ?", true).Count(&stats.RansomwareCount).Error; err != nil {
		return stats, err
	}
	if err := g.db.Model(&models.Vendor{}).Count(&stats.VendorCount).Error; err != nil {
		return stats, err
	}
	if err := g.db.Model(&models.Product{}).Count(&stats.ProductCount).Error; err != nil {
		return stats, err
	}
	err := g.db.Model(&models.Vulnerability{}).
		Where("date_added >= ?", time.Now().AddDate(0, 0, -30)).
		Count(&stats.AddedLast30Days).Error
	return stats, err
}
