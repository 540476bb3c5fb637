package daemons

import (
	"log/slog"
	"os"
	"time"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/shared"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func getLastSyncTime(configService shared.ConfigService, key string) (time.Time, error) {
	var lastSync struct {
		Time time.Time `json:"time"`
	}

	err := configService.GetJSONConfig(key, &lastSync)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("could not get last sync time", "err", err, "key", key)
		return time.Time{}, err
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Info("no last sync time found. Setting to 0", "key", key)
		return time.Time{}, nil
	}

	return lastSync.Time, nil
}

func (runner *DaemonRunner) shouldSync(key string) bool {
	lastTime, err := getLastSyncTime(runner.configService, key)
	if err != nil {
		return false
	}

	return time.Since(lastTime) > runner.syncInterval
}

func markSynced(configService shared.ConfigService, key string) error {
	return configService.SetJSONConfig(key, struct {
		Time time.Time `json:"time"`
	}{
		Time: time.Now(),
	})
}

func syncIntervalFromEnv() time.Duration {
	if raw := os.Getenv("KEV_SYNC_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			return parsed
		}
		slog.Warn("invalid KEV_SYNC_INTERVAL, using default", "value", raw)
	}
	return 6 * time.Hour
}

func (runner *DaemonRunner) runDaemons() {
	daemonStart := time.Now()
	slog.Info("starting background jobs", "time", time.Now())

	if runner.shouldSync("kev.lastScheduledSync") {
		result, err := runner.syncService.Trigger(models.SyncTriggerScheduled)
		if err != nil {
			// another trigger beat us to it - the catalog is being synced
			// either way, so mark the schedule satisfied
			slog.Info("scheduled sync not started", "err", err)
		} else {
			slog.Info("scheduled sync started", "runID", result.RunID)
		}
		if err := markSynced(runner.configService, "kev.lastScheduledSync"); err != nil {
			slog.Error("could not mark scheduled sync", "err", err)
		}
	}

	slog.Info("background jobs finished", "duration", time.Since(daemonStart))
}

type syncTriggerer interface {
	Trigger(trigger models.SyncTrigger) (dtos.TriggerResult, error)
}
