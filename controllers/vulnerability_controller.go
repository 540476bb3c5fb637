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
	"strings"
	"time"

	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type VulnerabilityController struct {
	vulnerabilityRepository shared.VulnerabilityRepository
	changeEventRepository   shared.ChangeEventRepository
}

func NewVulnerabilityController(vulnerabilityRepository shared.VulnerabilityRepository, changeEventRepository shared.ChangeEventRepository) *VulnerabilityController {
	return &VulnerabilityController{
		vulnerabilityRepository: vulnerabilityRepository,
		changeEventRepository:   changeEventRepository,
	}
}

func filterFromQuery(ctx shared.Context) (dtos.VulnerabilityFilter, error) {
	filter := dtos.VulnerabilityFilter{
		Vendor:         ctx.QueryParam("vendor"),
		Product:        ctx.QueryParam("product"),
		RansomwareOnly: ctx.QueryParam("ransomwareOnly") == "true",
		SortBy:         ctx.QueryParam("sortBy"),
		SortOrder:      ctx.QueryParam("sortOrder"),
	}

	if raw := ctx.QueryParam("dateFrom"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.Wrap(err, "invalid dateFrom")
		}
		filter.DateFrom = &t
	}
	if raw := ctx.QueryParam("dateTo"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, errors.Wrap(err, "invalid dateTo")
		}
		filter.DateTo = &t
	}

	return filter, nil
}

func (controller *VulnerabilityController) List(ctx shared.Context) error {
	filter, err := filterFromQuery(ctx)
	if err != nil {
		return echo.NewHTTPError(400, err.Error())
	}

	paged, err := controller.vulnerabilityRepository.FindAllPaged(shared.GetPageInfo(ctx), filter)
	if err != nil {
		return echo.NewHTTPError(500, "could not list vulnerabilities").WithInternal(err)
	}

	return ctx.JSON(200, paged)
}

func (controller *VulnerabilityController) Read(ctx shared.Context) error {
	cveID := strings.ToUpper(shared.GetParam(ctx, "cveID"))

	vulnerability, err := controller.vulnerabilityRepository.FindByCVE(nil, cveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(404, "vulnerability not found")
		}
		return echo.NewHTTPError(500, "could not read vulnerability").WithInternal(err)
	}

	return ctx.JSON(200, vulnerability)
}

// History returns the recorded change events for one CVE, newest first.
func (controller *VulnerabilityController) History(ctx shared.Context) error {
	cveID := strings.ToUpper(shared.GetParam(ctx, "cveID"))

	// 404 for unknown CVEs instead of an empty list
	if _, err := controller.vulnerabilityRepository.FindByCVE(nil, cveID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(404, "vulnerability not found")
		}
		return echo.NewHTTPError(500, "could not read vulnerability").WithInternal(err)
	}

	events, err := controller.changeEventRepository.ListByCVE(cveID, 100)
	if err != nil {
		return echo.NewHTTPError(500, "could not read change history").WithInternal(err)
	}

	return ctx.JSON(200, events)
}

func (controller *VulnerabilityController) Stats(ctx shared.Context) error {
	stats, err := controller.vulnerabilityRepository.Stats()
	if err != nil {
		return echo.NewHTTPError(500, "could not compute statistics").WithInternal(err)
	}

	return ctx.JSON(200, stats)
}
