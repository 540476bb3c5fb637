package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/kev"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSyncService struct {
	trigger         func(trigger models.SyncTrigger) (dtos.TriggerResult, error)
	checkForUpdates func(ctx context.Context) (dtos.UpdateCheck, error)
	currentStatus   func() (dtos.SyncStatus, error)
	history         func(limit int) ([]models.SyncRun, error)
}

func (f fakeSyncService) Trigger(trigger models.SyncTrigger) (dtos.TriggerResult, error) {
	return f.trigger(trigger)
}

func (f fakeSyncService) CheckForUpdates(ctx context.Context) (dtos.UpdateCheck, error) {
	return f.checkForUpdates(ctx)
}

func (f fakeSyncService) CurrentStatus() (dtos.SyncStatus, error) {
	return f.currentStatus()
}

func (f fakeSyncService) History(limit int) ([]models.SyncRun, error) {
	return f.history(limit)
}

func syncContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e := echo.New()
	return e.NewContext(req, rec), rec
}

func TestSyncControllerTrigger(t *testing.T) {
	t.Run("should accept a manual trigger with 202", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			trigger: func(trigger models.SyncTrigger) (dtos.TriggerResult, error) {
				assert.Equal(t, models.SyncTriggerManual, trigger)
				return dtos.TriggerResult{Accepted: true}, nil
			},
		}}

		ctx, rec := syncContext(http.MethodPost, "/sync/trigger/")
		require.NoError(t, controller.Trigger(ctx))
		assert.Equal(t, 202, rec.Code)
	})

	t.Run("should translate force=true into a forced trigger", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			trigger: func(trigger models.SyncTrigger) (dtos.TriggerResult, error) {
				assert.Equal(t, models.SyncTriggerForced, trigger)
				return dtos.TriggerResult{Accepted: true, Queued: true}, nil
			},
		}}

		ctx, _ := syncContext(http.MethodPost, "/sync/trigger/?force=true")
		require.NoError(t, controller.Trigger(ctx))
	})

	t.Run("should answer 409 while a run is in progress", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			trigger: func(trigger models.SyncTrigger) (dtos.TriggerResult, error) {
				return dtos.TriggerResult{}, kev.ErrAlreadyInProgress
			},
		}}

		ctx, _ := syncContext(http.MethodPost, "/sync/trigger/")
		err := controller.Trigger(ctx)
		require.Error(t, err)
		httpError, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, 409, httpError.Code)
	})
}

func TestSyncControllerStatus(t *testing.T) {
	t.Run("should answer 404 before the first run", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			currentStatus: func() (dtos.SyncStatus, error) {
				return dtos.SyncStatus{}, gorm.ErrRecordNotFound
			},
		}}

		ctx, _ := syncContext(http.MethodGet, "/sync/status/")
		err := controller.Status(ctx)
		require.Error(t, err)
		httpError, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, 404, httpError.Code)
	})

	t.Run("should return the current status", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			currentStatus: func() (dtos.SyncStatus, error) {
				return dtos.SyncStatus{Status: models.SyncRunStatusRunning, Progress: 42}, nil
			},
		}}

		ctx, rec := syncContext(http.MethodGet, "/sync/status/")
		require.NoError(t, controller.Status(ctx))
		assert.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Body.String(), `"progress":42`)
	})
}

func TestSyncControllerHistory(t *testing.T) {
	t.Run("should reject a non-numeric limit", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{}}

		ctx, _ := syncContext(http.MethodGet, "/sync/history/?limit=abc")
		err := controller.History(ctx)
		require.Error(t, err)
		httpError, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, 400, httpError.Code)
	})

	t.Run("should cap the limit at 100", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			history: func(limit int) ([]models.SyncRun, error) {
				assert.Equal(t, 100, limit)
				return nil, nil
			},
		}}

		ctx, _ := syncContext(http.MethodGet, "/sync/history/?limit=5000")
		require.NoError(t, controller.History(ctx))
	})

	t.Run("should default to 20 entries", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			history: func(limit int) ([]models.SyncRun, error) {
				assert.Equal(t, 20, limit)
				return nil, nil
			},
		}}

		ctx, _ := syncContext(http.MethodGet, "/sync/history/")
		require.NoError(t, controller.History(ctx))
	})
}

func TestSyncControllerCheck(t *testing.T) {
	t.Run("should answer 502 when the upstream feed is unreachable", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			checkForUpdates: func(ctx context.Context) (dtos.UpdateCheck, error) {
				return dtos.UpdateCheck{}, &kev.FetchError{Transient: true, Err: context.DeadlineExceeded}
			},
		}}

		ctx, _ := syncContext(http.MethodGet, "/sync/check/")
		err := controller.Check(ctx)
		require.Error(t, err)
		httpError, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, 502, httpError.Code)
	})

	t.Run("should report the version comparison", func(t *testing.T) {
		controller := &SyncController{syncService: fakeSyncService{
			checkForUpdates: func(ctx context.Context) (dtos.UpdateCheck, error) {
				return dtos.UpdateCheck{UpToDate: true, CatalogVersion: "2024.03.05", LastSyncedVersion: "2024.03.05"}, nil
			},
		}}

		ctx, rec := syncContext(http.MethodGet, "/sync/check/")
		require.NoError(t, controller.Check(ctx))
		assert.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Body.String(), `"upToDate":true`)
	})
}
