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
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package controllers

import (
	"context"
	"strconv"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/kev"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type syncService interface {
	Trigger(trigger models.SyncTrigger) (dtos.TriggerResult, error)
	CheckForUpdates(ctx context.Context) (dtos.UpdateCheck, error)
	CurrentStatus() (dtos.SyncStatus, error)
	History(limit int) ([]models.SyncRun, error)
}

type SyncController struct {
	syncService syncService
}

func NewSyncController(service *kev.SyncService) *SyncController {
	return &SyncController{
		syncService: service,
	}
}

// Trigger starts a new sync run. With ?force=true a run is started (or
// queued) even while another run is active.
func (controller *SyncController) Trigger(ctx shared.Context) error {
	trigger := models.SyncTriggerManual
	if ctx.QueryParam("force") == "true" {
		trigger = models.SyncTriggerForced
	}

	result, err := controller.syncService.Trigger(trigger)
	if err != nil {
		if errors.Is(err, kev.ErrAlreadyInProgress) {
			return echo.NewHTTPError(409, "a sync run is already in progress")
		}
		return echo.NewHTTPError(500, "could not trigger sync").WithInternal(err)
	}

	return ctx.JSON(202, result)
}

func (controller *SyncController) Status(ctx shared.Context) error {
	status, err := controller.syncService.CurrentStatus()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(404, "no sync run recorded yet")
		}
		return echo.NewHTTPError(500, "could not read sync status").WithInternal(err)
	}

	return ctx.JSON(200, status)
}

func (controller *SyncController) History(ctx shared.Context) error {
	limit := 20
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(400, "invalid limit parameter")
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	runs, err := controller.syncService.History(limit)
	if err != nil {
		return echo.NewHTTPError(500, "could not read sync history").WithInternal(err)
	}

	return ctx.JSON(200, runs)
}

// Check asks upstream for the published catalog version without running a
// full sync.
func (controller *SyncController) Check(ctx shared.Context) error {
	check, err := controller.syncService.CheckForUpdates(ctx.Request().Context())
	if err != nil {
		return echo.NewHTTPError(502, "could not reach the upstream catalog").WithInternal(err)
	}

	return ctx.JSON(200, check)
}
