package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncRunProgress(t *testing.T) {
	t.Run("should report full progress for a succeeded run with skipped entries", func(t *testing.T) {
		run := SyncRun{
			Status:        SyncRunStatusSucceeded,
			FetchedCount:  2,
			InsertedCount: 1,
			SkippedCount:  1,
		}
		assert.Equal(t, 2, run.ProcessedCount())
		assert.Equal(t, 100, run.Progress())
	})

	t.Run("should report partial progress for a run in flight", func(t *testing.T) {
		run := SyncRun{
			Status:         SyncRunStatusRunning,
			FetchedCount:   200,
			InsertedCount:  40,
			UpdatedCount:   5,
			UnchangedCount: 50,
			SkippedCount:   5,
		}
		assert.Equal(t, 100, run.ProcessedCount())
		assert.Equal(t, 50, run.Progress())
	})

	t.Run("should report full progress for a succeeded run on an empty catalog", func(t *testing.T) {
		run := SyncRun{Status: SyncRunStatusSucceeded}
		assert.Equal(t, 100, run.Progress())
	})

	t.Run("should report zero progress before the catalog header arrived", func(t *testing.T) {
		run := SyncRun{Status: SyncRunStatusRunning}
		assert.Equal(t, 0, run.Progress())
	})

	t.Run("should cap progress at 100", func(t *testing.T) {
		run := SyncRun{
			Status:         SyncRunStatusRunning,
			FetchedCount:   10,
			InsertedCount:  8,
			UnchangedCount: 4,
		}
		assert.Equal(t, 100, run.Progress())
	})
}
