package controllers

import (
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/labstack/echo/v4"
)

type VendorController struct {
	vendorRepository shared.VendorRepository
}

func NewVendorController(vendorRepository shared.VendorRepository) *VendorController {
	return &VendorController{
		vendorRepository: vendorRepository,
	}
}

func (controller *VendorController) List(ctx shared.Context) error {
	vendors, err := controller.vendorRepository.ListWithCounts()
	if err != nil {
		return echo.NewHTTPError(500, "could not list vendors").WithInternal(err)
	}

	return ctx.JSON(200, vendors)
}
