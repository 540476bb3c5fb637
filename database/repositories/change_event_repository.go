package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"gorm.io/gorm"
)

// changeEventRepository is append-only. There is deliberately no update or
// delete path: change events are the audit trail.
type changeEventRepository struct {
	db *gorm.DB
	*GormRepository[uuid.UUID, models.ChangeEvent]
}

func NewChangeEventRepository(db *gorm.DB) *changeEventRepository {
	return &changeEventRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.ChangeEvent](db),
	}
}

func (g *changeEventRepository) ListByCVE(cveID string, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.ChangeEvent
	err := g.db.Where("cve_id = ?", cveID).
		Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (g *changeEventRepository) ListByRun(runID uuid.UUID) ([]models.ChangeEvent, error) {
	var events []models.ChangeEvent
	err := g.db.Where("sync_run_id = ?", runID).
		Order("created_at ASC").Find(&events).Error
	return events, err
}

func (g *changeEventRepository) CountByRun(runID uuid.UUID) (int64, error) {
	var count int64
	err := g.db.Model(&models.ChangeEvent{}).Where("sync_run_id = ?", runID).Count(&count).Error
	return count, err
}
