package router

import (
	"github.com/l3montree-dev/kevmon/controllers"
	"github.com/labstack/echo/v4"
)

type VendorRouter struct {
	*echo.Group
}

func NewVendorRouter(
	apiV1Router APIV1Router,
	vendorController *controllers.VendorController,
) VendorRouter {
	vendorRouter := apiV1Router.Group.Group("/vendors")
	vendorRouter.GET("/", vendorController.List)

	return VendorRouter{Group: vendorRouter}
}
