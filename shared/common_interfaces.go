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

package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/utils"
)

type VendorRepository interface {
	utils.Repository[uuid.UUID, models.Vendor, DB]
	FindByCanonicalName(tx DB, canonicalName string) (models.Vendor, error)
	// UpsertByCanonicalName inserts the vendor or reads the existing row with
	// the same canonical name. Safe to call concurrently.
	UpsertByCanonicalName(tx DB, vendor *models.Vendor) error
	ListWithCounts() ([]dtos.VendorSummary, error)
}

type ProductRepository interface {
	utils.Repository[uuid.UUID, models.Product, DB]
	FindByVendorAndCanonicalName(tx DB, vendorID uuid.UUID, canonicalName string) (models.Product, error)
	UpsertByCanonicalName(tx DB, product *models.Product) error
}

type VulnerabilityRepository interface {
	utils.Repository[string, models.Vulnerability, DB]
	FindByCVE(tx DB, cveID string) (models.Vulnerability, error)
	FindAllByCVEs(tx DB, cveIDs []string) ([]models.Vulnerability, error)
	FindAllPaged(pageInfo PageInfo, filter dtos.VulnerabilityFilter) (Paged[models.Vulnerability], error)
	Stats() (dtos.VulnerabilityStats, error)
}

type SyncRunRepository interface {
	utils.Repository[uuid.UUID, models.SyncRun, DB]
	// TryClaim atomically claims the single in-flight slot. It returns the
	// freshly created running run on success, or the currently active run if
	// one is still alive. A stale in-flight run (heartbeat older than the
	// lease) is marked failed and its slot reclaimed.
	TryClaim(trigger models.SyncTrigger, lease time.Duration) (claimed *models.SyncRun, active *models.SyncRun, err error)
	Heartbeat(runID uuid.UUID) error
	// UpdateProgress persists counters for a still-running run. It is a no-op
	// on terminal runs so a finished state can never be overwritten.
	UpdateProgress(runID uuid.UUID, run models.SyncRun) error
	Finish(runID uuid.UUID, status models.SyncRunStatus, errorMessage *string) error
	Current() (models.SyncRun, error)
	LastSucceeded() (models.SyncRun, error)
	History(limit int) ([]models.SyncRun, error)
}

type ChangeEventRepository interface {
	utils.Repository[uuid.UUID, models.ChangeEvent, DB]
	ListByCVE(cveID string, limit int) ([]models.ChangeEvent, error)
	ListByRun(runID uuid.UUID) ([]models.ChangeEvent, error)
	CountByRun(runID uuid.UUID) (int64, error)
}

type ConfigRepository interface {
	Save(tx DB, config *models.Config) error
	GetDB(tx DB) DB
}

type ConfigService interface {
	GetJSONConfig(key string, v any) error
	SetJSONConfig(key string, v any) error
	RemoveConfig(key string) error
}

type LeaderElector interface {
	IsLeader() bool
}
