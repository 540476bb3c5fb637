package services

import (
	"github.com/l3montree-dev/kevmon/shared"
	"go.uber.org/fx"
)

// Module provides all service-layer constructors
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewConfigService, fx.As(new(shared.ConfigService))),
	),
	fx.Provide(
		fx.Annotate(NewDatabaseLeaderElector, fx.As(new(shared.LeaderElector))),
	),
)
