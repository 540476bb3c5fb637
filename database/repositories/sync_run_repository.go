// Copyright (C) 2025 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package repositories

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type syncRunRepository struct {
	db *gorm.DB
	*GormRepository[uuid.UUID, models.SyncRun]
}

func NewSyncRunRepository(db *gorm.DB) *syncRunRepository {
	return &syncRunRepository{
		db:             db,
		GormRepository: newGormRepository[uuid.UUID, models.SyncRun](db),
	}
}

// TryClaim claims the single in-flight slot inside one transaction. The
// in-flight row is locked FOR UPDATE so two concurrent triggers cannot both
// observe "not in flight" and proceed. A stale run - heartbeat older than
// the lease - is marked failed and its slot reclaimed, so a process crash
// mid-run never leaves the flag stuck forever.
func (g *syncRunRepository) TryClaim(trigger models.SyncTrigger, lease time.Duration) (*models.SyncRun, *models.SyncRun, error) {
	var claimed *models.SyncRun
	var active *models.SyncRun

	err := g.Transaction(func(tx *gorm.DB) error {
		var inFlight []models.SyncRun
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("in_flight = ?", true).
			Find(&inFlight).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range inFlight {
			run := &inFlight[i]
			if now.Sub(run.HeartbeatAt) <= lease {
				active = run
				return nil
			}

			slog.Warn("reclaiming stale in-flight sync run", "runID", run.ID, "heartbeatAt", run.HeartbeatAt)
			if err := tx.Model(run).Updates(map[string]any{
				"in_flight":     false,
				"status":        models.SyncRunStatusFailed,
				"finished_at":   now,
				"error_message": "in-flight lease expired, run reclaimed",
			}).Error; err != nil {
				return err
			}
		}

		newRun := models.SyncRun{
			Status:      models.SyncRunStatusRunning,
			Trigger:     trigger,
			InFlight:    true,
			StartedAt:   now,
			HeartbeatAt: now,
		}
		if err := tx.Create(&newRun).Error; err != nil {
			return err
		}
		claimed = &newRun
		return nil
	})

	return claimed, active, err
}

func (g *syncRunRepository) Heartbeat(runID uuid.UUID) error {
	return g.db.Model(&models.SyncRun{}).
		Where("id = ? AND in_flight = ?", runID, true).
		Update("heartbeat_at", time.Now()).Error
}

// UpdateProgress only touches still-running rows: a terminal state written
// by Finish is never overwritten by a late progress update.
func (g *syncRunRepository) UpdateProgress(runID uuid.UUID, run models.SyncRun) error {
	return g.db.Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", runID, models.SyncRunStatusRunning).
		Updates(map[string]any{
			"fetched_count":         run.FetchedCount,
			"inserted_count":        run.InsertedCount,
			"updated_count":         run.UpdatedCount,
			"unchanged_count":       run.UnchangedCount,
			"skipped_count":         run.SkippedCount,
			"catalog_version":       run.CatalogVersion,
			"catalog_date_released": run.CatalogDateReleased,
			"heartbeat_at":          time.Now(),
		}).Error
}

func (g *syncRunRepository) Finish(runID uuid.UUID, status models.SyncRunStatus, errorMessage *string) error {
	return g.db.Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", runID, models.SyncRunStatusRunning).
		Updates(map[string]any{
			"status":        status,
			"in_flight":     false,
			"finished_at":   time.Now(),
			"error_message": errorMessage,
		}).Error
}

func (g *syncRunRepository) Current() (models.SyncRun, error) {
	var run models.SyncRun
	err := g.db.Order("started_at DESC").First(&run).Error
	return run, err
}

func (g *syncRunRepository) LastSucceeded() (models.SyncRun, error) {
	var run models.SyncRun
	err := g.db.Where("status = ?", models.SyncRunStatusSucceeded).
		Order("started_at DESC").First(&run).Error
	return run, err
}

func (g *syncRunRepository) History(limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := g.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
