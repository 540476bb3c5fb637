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
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package kev

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/dtos"
	"github.com/l3montree-dev/kevmon/monitoring"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/l3montree-dev/kevmon/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrAlreadyInProgress is the expected, recoverable rejection a caller gets
// when triggering while a run is in flight. It is not a failure.
var ErrAlreadyInProgress = errors.New("a sync run is already in progress")

type feedFetcher interface {
	Fetch(ctx context.Context) (Catalog, error)
	FetchEnvelope(ctx context.Context) (Envelope, error)
}

// SyncService coordinates one synchronization run: claim the single-flight
// slot, fetch, normalize, reconcile, persist in batches, publish progress.
//
// Forced-trigger policy: a forced trigger while a run is active in this
// process queues exactly one follow-up run which starts right after the
// current run finishes; additional forces collapse into the pending one. A
// run held by another replica (DB lease) can not be queued against and is
// rejected like a normal trigger.
type SyncService struct {
	feed                    feedFetcher
	vendorRepository        shared.VendorRepository
	productRepository       shared.ProductRepository
	vulnerabilityRepository shared.VulnerabilityRepository
	syncRunRepository       shared.SyncRunRepository
	changeEventRepository   shared.ChangeEventRepository

	running atomic.Bool
	queued  atomic.Bool

	cancelMut  sync.Mutex
	cancelRun  context.CancelCauseFunc
	runDone    chan struct{}
	background bool

	batchSize       int
	maxFetchRetries int
	retryBackoff    time.Duration
	leaseTimeout    time.Duration
}

func NewSyncService(
	feed feedFetcher,
	vendorRepository shared.VendorRepository,
	productRepository shared.ProductRepository,
	vulnerabilityRepository shared.VulnerabilityRepository,
	syncRunRepository shared.SyncRunRepository,
	changeEventRepository shared.ChangeEventRepository,
) *SyncService {
	return &SyncService{
		feed:                    feed,
		vendorRepository:        vendorRepository,
		productRepository:       productRepository,
		vulnerabilityRepository: vulnerabilityRepository,
		syncRunRepository:       syncRunRepository,
		changeEventRepository:   changeEventRepository,

		background:      true,
		batchSize:       100,
		maxFetchRetries: 3,
		retryBackoff:    2 * time.Second,
		leaseTimeout:    5 * time.Minute,
	}
}

// Trigger requests a new synchronization run. The run itself executes in the
// background; callers poll CurrentStatus for progress.
func (s *SyncService) Trigger(trigger models.SyncTrigger) (dtos.TriggerResult, error) {
	force := trigger == models.SyncTriggerForced

	if !s.running.CompareAndSwap(false, true) {
		if !force {
			return dtos.TriggerResult{}, ErrAlreadyInProgress
		}
		s.queued.Store(true)
		// the active run may have finished - and drained the queue - between
		// the failed swap and setting the flag. Re-check, otherwise the
		// queued run would only start after some future run finishes.
		if !s.running.CompareAndSwap(false, true) {
			return dtos.TriggerResult{Accepted: true, Queued: true}, nil
		}
		if !s.queued.CompareAndSwap(true, false) {
			// another trigger drained the flag and owns the follow-up run
			s.running.Store(false)
			return dtos.TriggerResult{Accepted: true, Queued: true}, nil
		}
		// we won the slot - start the queued run ourselves
	}

	claimed, active, err := s.syncRunRepository.TryClaim(trigger, s.leaseTimeout)
	if err != nil {
		s.running.Store(false)
		return dtos.TriggerResult{}, errors.Wrap(err, "could not claim sync run")
	}
	if claimed == nil {
		// another replica holds the lease
		s.running.Store(false)
		if active != nil {
			slog.Info("sync run already active on another instance", "runID", active.ID)
		}
		return dtos.TriggerResult{}, ErrAlreadyInProgress
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan struct{})
	s.cancelMut.Lock()
	s.cancelRun = cancel
	s.runDone = done
	s.cancelMut.Unlock()

	execute := func() {
		defer close(done)
		s.execute(ctx, *claimed)
	}

	if s.background {
		go execute()
	} else {
		execute()
	}

	return dtos.TriggerResult{Accepted: true, RunID: &claimed.ID}, nil
}

// Cancel requests cancellation of the current run. It is observed at the
// next batch boundary or fetch timeout.
func (s *SyncService) Cancel(reason string) {
	s.cancelMut.Lock()
	defer s.cancelMut.Unlock()
	if s.cancelRun != nil {
		s.cancelRun(fmt.Errorf("sync cancelled: %s", reason))
	}
}

// Wait blocks until the currently running sync (if any) finished. Used by
// the CLI, which triggers and wants the result synchronously.
func (s *SyncService) Wait() {
	s.cancelMut.Lock()
	done := s.runDone
	s.cancelMut.Unlock()
	if done != nil {
		<-done
	}
}

func (s *SyncService) execute(ctx context.Context, run models.SyncRun) {
	begin := time.Now()
	defer func() {
		monitoring.SyncDuration.Observe(time.Since(begin).Minutes())
	}()

	slog.Info("starting catalog sync", "runID", run.ID, "trigger", run.Trigger)

	if err := s.runSync(ctx, &run); err != nil {
		monitoring.SyncRunsTotal.WithLabelValues(string(models.SyncRunStatusFailed)).Inc()
		msg := err.Error()
		if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
			msg = cause.Error()
		}
		slog.Error("catalog sync failed", "runID", run.ID, "err", err)
		if finishErr := s.syncRunRepository.Finish(run.ID, models.SyncRunStatusFailed, &msg); finishErr != nil {
			monitoring.Alert("could not mark sync run as failed", finishErr)
		}
	} else {
		monitoring.SyncRunsTotal.WithLabelValues(string(models.SyncRunStatusSucceeded)).Inc()
		slog.Info("catalog sync succeeded", "runID", run.ID,
			"fetched", run.FetchedCount, "inserted", run.InsertedCount,
			"updated", run.UpdatedCount, "unchanged", run.UnchangedCount,
			"skipped", run.SkippedCount, "duration", time.Since(begin))
		if finishErr := s.syncRunRepository.Finish(run.ID, models.SyncRunStatusSucceeded, nil); finishErr != nil {
			monitoring.Alert("could not mark sync run as succeeded", finishErr)
		}
	}

	s.running.Store(false)

	// a forced trigger arrived while we were running - start the queued run
	if s.queued.CompareAndSwap(true, false) {
		slog.Info("starting queued forced sync run")
		if _, err := s.Trigger(models.SyncTriggerForced); err != nil {
			slog.Error("could not start queued sync run", "err", err)
		}
	}
}

func (s *SyncService) runSync(ctx context.Context, run *models.SyncRun) error {
	catalog, err := s.fetchWithRetry(ctx)
	if err != nil {
		return err
	}

	monitoring.CatalogEntriesFetched.Set(float64(len(catalog.Vulnerabilities)))

	run.FetchedCount = len(catalog.Vulnerabilities)
	run.CatalogVersion = catalog.CatalogVersion
	run.CatalogDateReleased = catalog.DateReleased
	if err := s.syncRunRepository.UpdateProgress(run.ID, *run); err != nil {
		return errors.Wrap(err, "could not persist fetch result")
	}

	resolver := newEntityResolver(s.vendorRepository, s.productRepository)

	batch := make([]NormalizedEntry, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "sync cancelled")
		}
		if err := s.commitBatch(run, resolver, batch); err != nil {
			return err
		}
		batch = batch[:0]
		// counters only ever grow; pollers observe monotonic progress
		if err := s.syncRunRepository.UpdateProgress(run.ID, *run); err != nil {
			return errors.Wrap(err, "could not persist progress")
		}
		return nil
	}

	for _, raw := range catalog.Vulnerabilities {
		entry, skipped := normalizeEntry(raw)
		if skipped != nil {
			slog.Warn("skipping catalog entry", "cve", skipped.CVEID, "reason", skipped.Reason)
			run.SkippedCount++
			continue
		}

		batch = append(batch, entry)
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	// a trailing stretch of skipped entries never reaches a batch flush -
	// persist the final counters unconditionally
	if err := s.syncRunRepository.UpdateProgress(run.ID, *run); err != nil {
		return errors.Wrap(err, "could not persist final counters")
	}

	return nil
}

// commitBatch persists one batch transactionally: vendors, products,
// vulnerabilities and change events either all commit or all roll back.
// Counters on run are only advanced after the commit succeeded.
func (s *SyncService) commitBatch(run *models.SyncRun, resolver *entityResolver, batch []NormalizedEntry) error {
	var inserted, updated, unchanged int

	err := s.vulnerabilityRepository.Transaction(func(tx shared.DB) error {
		cveIDs := utils.Map(batch, func(e NormalizedEntry) string { return e.CVEID })
		existingRows, err := s.vulnerabilityRepository.FindAllByCVEs(tx, cveIDs)
		if err != nil {
			return errors.Wrap(err, "could not load existing vulnerabilities")
		}
		existing := make(map[string]*models.Vulnerability, len(existingRows))
		for i := range existingRows {
			existing[existingRows[i].CVE] = &existingRows[i]
		}

		now := time.Now()
		for _, entry := range batch {
			vendor, product, err := resolver.resolve(tx, entry)
			if err != nil {
				return errors.Wrapf(err, "could not resolve entities for %s", entry.CVEID)
			}

			hash := entry.ContentHash()
			diff := classify(existing[entry.CVEID], entry, hash)

			switch diff.Classification {
			case ClassInsert:
				vuln := newVulnerability(entry, hash, vendor, product, now)
				if err := s.vulnerabilityRepository.Create(tx, &vuln); err != nil {
					return errors.Wrapf(err, "could not create vulnerability %s", entry.CVEID)
				}
				event := models.ChangeEvent{
					CVE:       entry.CVEID,
					SyncRunID: run.ID,
					Kind:      models.ChangeKindCreated,
				}
				if err := s.changeEventRepository.Create(tx, &event); err != nil {
					return errors.Wrapf(err, "could not record change event for %s", entry.CVEID)
				}
				inserted++

			case ClassUpdate:
				vuln := existing[entry.CVEID]
				applyUpdate(vuln, entry, hash, now)
				if err := s.vulnerabilityRepository.Save(tx, vuln); err != nil {
					return errors.Wrapf(err, "could not update vulnerability %s", entry.CVEID)
				}
				// a hash mismatch without named fields happens when the hash
				// algorithm changed; refresh silently, there is nothing to audit
				if len(diff.ChangedFields) > 0 {
					event := models.ChangeEvent{
						CVE:           entry.CVEID,
						SyncRunID:     run.ID,
						Kind:          models.ChangeKindUpdated,
						ChangedFields: diff.ChangedFields,
						OldValues:     mustJSON(diff.OldValues),
						NewValues:     mustJSON(diff.NewValues),
					}
					if err := s.changeEventRepository.Create(tx, &event); err != nil {
						return errors.Wrapf(err, "could not record change event for %s", entry.CVEID)
					}
				}
				updated++

			case ClassUnchanged:
				vuln := existing[entry.CVEID]
				vuln.LastSyncedAt = now
				if err := s.vulnerabilityRepository.Save(tx, vuln); err != nil {
					return errors.Wrapf(err, "could not touch vulnerability %s", entry.CVEID)
				}
				unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.InsertedCount += inserted
	run.UpdatedCount += updated
	run.UnchangedCount += unchanged
	return nil
}

func (s *SyncService) fetchWithRetry(ctx context.Context) (Catalog, error) {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 0; ; attempt++ {
		catalog, err := s.feed.Fetch(ctx)
		if err == nil {
			return catalog, nil
		}
		lastErr = err

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Transient || attempt >= s.maxFetchRetries {
			return Catalog{}, lastErr
		}

		monitoring.FetchRetriesTotal.Inc()
		slog.Warn("transient feed error, retrying", "attempt", attempt+1, "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return Catalog{}, errors.Wrap(ctx.Err(), "sync cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// CheckForUpdates compares the published catalog version against the last
// succeeded run without touching the reconciliation path.
func (s *SyncService) CheckForUpdates(ctx context.Context) (dtos.UpdateCheck, error) {
	env, err := s.feed.FetchEnvelope(ctx)
	if err != nil {
		return dtos.UpdateCheck{}, err
	}

	check := dtos.UpdateCheck{
		CatalogVersion:      env.CatalogVersion,
		CatalogDateReleased: env.DateReleased,
	}

	last, err := s.syncRunRepository.LastSucceeded()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// never synced - everything is an update
			return check, nil
		}
		return dtos.UpdateCheck{}, err
	}

	check.LastSyncedVersion = last.CatalogVersion
	check.UpToDate = last.CatalogVersion == env.CatalogVersion
	return check, nil
}

// CurrentStatus returns the most recent run, including one still running.
func (s *SyncService) CurrentStatus() (dtos.SyncStatus, error) {
	run, err := s.syncRunRepository.Current()
	if err != nil {
		return dtos.SyncStatus{}, err
	}
	return dtos.SyncStatusFromRun(run), nil
}

func (s *SyncService) History(limit int) ([]models.SyncRun, error) {
	return s.syncRunRepository.History(limit)
}
