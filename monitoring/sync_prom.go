// Copyright 2025 l3montree GmbH
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "kevmon_catalog_sync_duration_minutes",
	Help:    "Duration of catalog synchronization runs in minutes",
	Buckets: prometheus.DefBuckets,
})

var SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kevmon_catalog_sync_runs_total",
	Help: "Number of catalog synchronization runs by terminal status",
}, []string{"status"})

var CatalogEntriesFetched = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "kevmon_catalog_entries_fetched",
	Help: "Number of entries in the most recently fetched catalog",
})

var FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kevmon_catalog_fetch_retries_total",
	Help: "Number of transient feed fetch failures that were retried",
})
