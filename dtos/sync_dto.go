package dtos

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/kevmon/database/models"
)

// SyncStatus is what pollers of the sync endpoint see. Progress is derived
// from the counters, never stored.
type SyncStatus struct {
	RunID               uuid.UUID            `json:"runId"`
	Status              models.SyncRunStatus `json:"status"`
	Trigger             models.SyncTrigger   `json:"trigger"`
	InFlight            bool                 `json:"inFlight"`
	Progress            int                  `json:"progress"`
	StartedAt           time.Time            `json:"startedAt"`
	FinishedAt          *time.Time           `json:"finishedAt,omitempty"`
	CatalogVersion      string               `json:"catalogVersion,omitempty"`
	CatalogDateReleased string               `json:"catalogDateReleased,omitempty"`
	FetchedCount        int                  `json:"fetchedCount"`
	InsertedCount       int                  `json:"insertedCount"`
	UpdatedCount        int                  `json:"updatedCount"`
	UnchangedCount      int                  `json:"unchangedCount"`
	SkippedCount        int                  `json:"skippedCount"`
	ErrorMessage        *string              `json:"errorMessage,omitempty"`
}

func SyncStatusFromRun(run models.SyncRun) SyncStatus {
	return SyncStatus{
		RunID:               run.ID,
		Status:              run.Status,
		Trigger:             run.Trigger,
		InFlight:            run.InFlight,
		Progress:            run.Progress(),
		StartedAt:           run.StartedAt,
		FinishedAt:          run.FinishedAt,
		CatalogVersion:      run.CatalogVersion,
		CatalogDateReleased: run.CatalogDateReleased,
		FetchedCount:        run.FetchedCount,
		InsertedCount:       run.InsertedCount,
		UpdatedCount:        run.UpdatedCount,
		UnchangedCount:      run.UnchangedCount,
		SkippedCount:        run.SkippedCount,
		ErrorMessage:        run.ErrorMessage,
	}
}

type TriggerResult struct {
	Accepted bool       `json:"accepted"`
	Queued   bool       `json:"queued"`
	RunID    *uuid.UUID `json:"runId,omitempty"`
}

type UpdateCheck struct {
	UpToDate            bool   `json:"upToDate"`
	CatalogVersion      string `json:"catalogVersion"`
	CatalogDateReleased string `json:"catalogDateReleased"`
	LastSyncedVersion   string `json:"lastSyncedVersion,omitempty"`
}
