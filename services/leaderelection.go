package services

import (
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/shared"
)

type leaderElectionConfig struct {
	LeaderID string `json:"leaderId"`
	LastPing int64  `json:"lastPing"`
}

// databaseLeaderElector elects a single replica through a shared config row.
// Only the leader starts scheduled sync runs - the single-flight claim in
// the sync run repository is still the hard guarantee, this just avoids
// every replica hammering the claim at the same time.
type databaseLeaderElector struct {
	leaderElectorID string
	configService   shared.ConfigService
	isLeader        atomic.Bool // updated by a daemon goroutine
}

func NewDatabaseLeaderElector(configService shared.ConfigService) *databaseLeaderElector {
	leaderElector := databaseLeaderElector{
		configService:   configService,
		leaderElectorID: uuid.New().String(),
	}
	leaderElector.startDaemon()
	return &leaderElector
}

func randomNumberBetween(min, max int) int {
	return rand.Intn(max-min) + min // #nosec
}

func (e *databaseLeaderElector) daemon() {
	for {
		isLeader, err := e.checkIfLeader()
		if err != nil {
			slog.Error("could not check if leader", "err", err)
		}

		e.isLeader.Store(isLeader)

		// jitter so replicas do not contend for the leader row in lock step
		time.Sleep(time.Duration(randomNumberBetween(60, 359)) * time.Second)
	}
}

func (e *databaseLeaderElector) startDaemon() {
	go e.daemon()
}

func (e *databaseLeaderElector) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *databaseLeaderElector) makeLeader() error {
	return e.configService.SetJSONConfig("leaderElection", leaderElectionConfig{
		LeaderID: e.leaderElectorID,
		LastPing: time.Now().Unix(),
	})
}

func (e *databaseLeaderElector) checkIfLeader() (bool, error) {
	var config leaderElectionConfig

	err := e.configService.GetJSONConfig("leaderElection", &config)
	if err != nil {
		slog.Info("could not get leader election config", "err", err)
		// there is no leader yet - overwrite it.
		return true, e.makeLeader()
	}

	// a leader that stopped pinging for more than 360 seconds is dead
	if time.Now().Unix()-config.LastPing > 360 {
		return true, e.makeLeader()
	}

	if config.LeaderID == e.leaderElectorID {
		// refresh our own lease
		return true, e.makeLeader()
	}

	return false, nil
}
