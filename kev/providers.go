package kev

import (
	"github.com/l3montree-dev/kevmon/shared"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewFeedService),
	fx.Provide(func(
		feed FeedService,
		vendorRepository shared.VendorRepository,
		productRepository shared.ProductRepository,
		vulnerabilityRepository shared.VulnerabilityRepository,
		syncRunRepository shared.SyncRunRepository,
		changeEventRepository shared.ChangeEventRepository,
	) *SyncService {
		return NewSyncService(feed, vendorRepository, productRepository, vulnerabilityRepository, syncRunRepository, changeEventRepository)
	}),
)
