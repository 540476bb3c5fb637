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

package daemons

import (
	"log/slog"
	"time"

	"github.com/l3montree-dev/kevmon/kev"
	"github.com/l3montree-dev/kevmon/shared"
	"go.uber.org/fx"
)

// DaemonRunner periodically triggers scheduled catalog syncs on the leader
// instance.
type DaemonRunner struct {
	configService shared.ConfigService
	leaderElector shared.LeaderElector
	syncService   syncTriggerer

	syncInterval time.Duration
}

func NewDaemonRunner(
	configService shared.ConfigService,
	leaderElector shared.LeaderElector,
	syncService *kev.SyncService,
) *DaemonRunner {
	return &DaemonRunner{
		configService: configService,
		leaderElector: leaderElector,
		syncService:   syncService,
		syncInterval:  syncIntervalFromEnv(),
	}
}

// Start initiates all background daemons
func (runner *DaemonRunner) Start() {
	go func() {
		runner.tick()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			runner.tick()
		}
	}()
}

func (runner *DaemonRunner) tick() {
	if runner.leaderElector.IsLeader() {
		slog.Info("this instance is the leader - running background jobs")
		runner.runDaemons()
	} else {
		slog.Info("not the leader - skipping background jobs")
	}
}

var Module = fx.Module("daemons",
	fx.Provide(NewDaemonRunner),
)
