// Copyright (C) 2025 l3montree GmbH
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

package repositories_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/database/repositories"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/integrationtestutil"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestSyncRunClaiming(t *testing.T) {
	db, terminate := integrationtestutil.InitDatabaseContainer()
	defer terminate()

	repository := repositories.NewSyncRunRepository(db)
	lease := 5 * time.Minute

	t.Run("claiming the free slot creates a running in-flight run", func(t *testing.T) {
		claimed, active, err := repository.TryClaim(models.SyncTriggerManual, lease)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Nil(t, active)
		assert.Equal(t, models.SyncRunStatusRunning, claimed.Status)
		assert.True(t, claimed.InFlight)

		t.Run("a second claim is rejected while the lease is fresh", func(t *testing.T) {
			second, secondActive, err := repository.TryClaim(models.SyncTriggerManual, lease)
			require.NoError(t, err)
			assert.Nil(t, second)
			require.NotNil(t, secondActive)
			assert.Equal(t, claimed.ID, secondActive.ID)
		})

		t.Run("finishing the run frees the slot", func(t *testing.T) {
			require.NoError(t, repository.UpdateProgress(claimed.ID, models.SyncRun{
				FetchedCount:   10,
				InsertedCount:  10,
				CatalogVersion: "2024.03.05",
			}))
			require.NoError(t, repository.Finish(claimed.ID, models.SyncRunStatusSucceeded, nil))

			run, err := repository.Current()
			require.NoError(t, err)
			assert.Equal(t, models.SyncRunStatusSucceeded, run.Status)
			assert.False(t, run.InFlight)
			assert.Equal(t, "2024.03.05", run.CatalogVersion)
			require.NotNil(t, run.FinishedAt)

			last, err := repository.LastSucceeded()
			require.NoError(t, err)
			assert.Equal(t, claimed.ID, last.ID)
		})
	})

	t.Run("a stale lease is reclaimed and the dead run marked failed", func(t *testing.T) {
		stale, _, err := repository.TryClaim(models.SyncTriggerScheduled, lease)
		require.NoError(t, err)
		require.NotNil(t, stale)

		// simulate a crashed process: the heartbeat stopped long ago
		require.NoError(t, db.Model(&models.SyncRun{}).
			Where("id = ?", stale.ID).
			Update("heartbeat_at", time.Now().Add(-time.Hour)).Error)

		claimed, active, err := repository.TryClaim(models.SyncTriggerManual, lease)
		require.NoError(t, err)
		assert.Nil(t, active)
		require.NotNil(t, claimed)
		assert.NotEqual(t, stale.ID, claimed.ID)

		reclaimed, err := repository.Read(stale.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncRunStatusFailed, reclaimed.Status)
		assert.False(t, reclaimed.InFlight)
		require.NotNil(t, reclaimed.ErrorMessage)
		assert.Contains(t, *reclaimed.ErrorMessage, "lease expired")
	})

	t.Run("a finished run is not overwritten by late progress updates", func(t *testing.T) {
		last, err := repository.LastSucceeded()
		require.NoError(t, err)

		require.NoError(t, repository.UpdateProgress(last.ID, models.SyncRun{FetchedCount: 999}))
		require.NoError(t, repository.Finish(last.ID, models.SyncRunStatusFailed, shared.Ptr("late failure")))

		reread, err := repository.Read(last.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncRunStatusSucceeded, reread.Status)
		assert.Equal(t, 10, reread.FetchedCount)
	})

	t.Run("history returns newest runs first", func(t *testing.T) {
		runs, err := repository.History(10)
		require.NoError(t, err)
		require.True(t, len(runs) >= 2)
		for i := 1; i < len(runs); i++ {
			assert.True(t, !runs[i].StartedAt.After(runs[i-1].StartedAt))
		}
	})
}

func TestVendorAndVulnerabilityPersistence(t *testing.T) {
	db, terminate := integrationtestutil.InitDatabaseContainer()
	defer terminate()

	vendorRepository := repositories.NewVendorRepository(db)
	productRepository := repositories.NewProductRepository(db)
	vulnerabilityRepository := repositories.NewVulnerabilityRepository(db)

	vendor := models.Vendor{Name: "Microsoft", CanonicalName: "microsoft"}
	require.NoError(t, vendorRepository.UpsertByCanonicalName(db, &vendor))
	require.NotEqual(t, uuid.Nil, vendor.ID)

	product := models.Product{VendorID: vendor.ID, Name: "Windows", CanonicalName: "windows"}
	require.NoError(t, productRepository.UpsertByCanonicalName(db, &product))

	t.Run("upserting the same canonical name returns the existing row", func(t *testing.T) {
		again := models.Vendor{Name: "Microsoft Corp.", CanonicalName: "microsoft"}
		require.NoError(t, vendorRepository.UpsertByCanonicalName(db, &again))
		assert.Equal(t, vendor.ID, again.ID)
		// the first display name wins
		assert.Equal(t, "Microsoft", again.Name)
	})

	newVuln := func(cveID string, dateAdded time.Time, ransomware bool) models.Vulnerability {
		return models.Vulnerability{
			CVE:                cveID,
			VendorID:           vendor.ID,
			ProductID:          product.ID,
			VulnerabilityName:  "Test Vulnerability " + cveID,
			DateAdded:          datatypes.Date(dateAdded),
			ShortDescription:   "A test vulnerability.",
			RequiredAction:     "Apply updates per vendor instructions.",
			KnownRansomwareUse: ransomware,
			CWEs:               datatypes.JSON([]byte(`["CWE-416"]`)),
			ContentHash:        "hash-" + cveID,
			FirstSeenAt:        time.Now(),
			LastSyncedAt:       time.Now(),
		}
	}

	older := newVuln("CVE-2023-0001", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), false)
	newer := newVuln("CVE-2024-0002", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, vulnerabilityRepository.Create(db, &older))
	require.NoError(t, vulnerabilityRepository.Create(db, &newer))

	t.Run("lookups by CVE id", func(t *testing.T) {
		found, err := vulnerabilityRepository.FindByCVE(db, "CVE-2023-0001")
		require.NoError(t, err)
		assert.Equal(t, "CVE-2023-0001", found.CVE)

		_, err = vulnerabilityRepository.FindByCVE(db, "CVE-1999-9999")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		all, err := vulnerabilityRepository.FindAllByCVEs(db, []string{"CVE-2023-0001", "CVE-2024-0002", "CVE-1999-9999"})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("paged listing sorts by date added descending by default", func(t *testing.T) {
		paged, err := vulnerabilityRepository.FindAllPaged(
			shared.PageInfo{Page: 1, PageSize: 10},
			dtos.VulnerabilityFilter{},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(2), paged.Total)
		require.Len(t, paged.Data, 2)
		assert.Equal(t, "CVE-2024-0002", paged.Data[0].CVE)
	})

	t.Run("ransomware filter narrows the listing", func(t *testing.T) {
		paged, err := vulnerabilityRepository.FindAllPaged(
			shared.PageInfo{Page: 1, PageSize: 10},
			dtos.VulnerabilityFilter{RansomwareOnly: true},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(1), paged.Total)
		require.Len(t, paged.Data, 1)
		assert.Equal(t, "CVE-2024-0002", paged.Data[0].CVE)
	})

	t.Run("vendor filter matches case-insensitive substrings", func(t *testing.T) {
		paged, err := vulnerabilityRepository.FindAllPaged(
			shared.PageInfo{Page: 1, PageSize: 10},
			dtos.VulnerabilityFilter{Vendor: "micro"},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(2), paged.Total)
	})

	t.Run("stats aggregate over the catalog", func(t *testing.T) {
		stats, err := vulnerabilityRepository.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(1), stats.RansomwareCount)
		assert.Equal(t, int64(1), stats.VendorCount)
		assert.Equal(t, int64(1), stats.ProductCount)
	})

	t.Run("vendor summaries carry product and vulnerability counts", func(t *testing.T) {
		summaries, err := vendorRepository.ListWithCounts()
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Microsoft", summaries[0].Name)
		assert.Equal(t, int64(1), summaries[0].ProductCount)
		assert.Equal(t, int64(2), summaries[0].VulnerabilityCount)
	})
}
