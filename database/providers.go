package database

import (
	"go.uber.org/fx"
)

// Module wires the pgx pool and the GORM instance on top of it. A
// PoolConfig must be supplied by the caller.
var Module = fx.Options(
	fx.Provide(NewPgxConnPool),
	fx.Provide(NewGormDB),
)
