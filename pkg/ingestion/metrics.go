// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	filesAdded    prometheus.Counter
	filesModified prometheus.Counter
	filesDeleted  prometheus.Counter
	filesSkipped  prometheus.Counter

	entitiesAdded    prometheus.Counter
	entitiesModified prometheus.Counter
	entitiesRemoved  prometheus.Counter

	edgesUnresolved prometheus.Counter

	batchesSent prometheus.Counter

	parseDuration  prometheus.Histogram
	diffDuration   prometheus.Histogram
	writeDuration  prometheus.Histogram
	totalDuration  prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_files_added_total", Help: "Files newly observed by ingestion"})
		m.filesModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_files_modified_total", Help: "Files whose content hash changed"})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_files_deleted_total", Help: "Files no longer present on disk"})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_files_skipped_total", Help: "Files skipped for missing grammar, size, or exclusion"})

		m.entitiesAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_entities_added_total", Help: "Entities assigned a fresh birth_timestamp"})
		m.entitiesModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_entities_modified_total", Help: "Entities matched to a prior birth_timestamp with changed body"})
		m.entitiesRemoved = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_entities_removed_total", Help: "Entities tombstoned by the diff engine"})

		m.edgesUnresolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_edges_unresolved_total", Help: "Edges that fell back to the unknown sentinel"})

		m.batchesSent = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_ing_batches_sent_total", Help: "Mutation batches flushed to the graph store"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_ing_parse_seconds", Help: "Extraction duration per run", Buckets: buckets})
		m.diffDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_ing_diff_seconds", Help: "Identity assignment and diffing duration per run", Buckets: buckets})
		m.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_ing_write_seconds", Help: "Store write duration per run", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_ing_total_seconds", Help: "Total ingestion run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.filesAdded, m.filesModified, m.filesDeleted, m.filesSkipped,
			m.entitiesAdded, m.entitiesModified, m.entitiesRemoved,
			m.edgesUnresolved,
			m.batchesSent,
			m.parseDuration, m.diffDuration, m.writeDuration, m.totalDuration,
		)
	})
}

func recordEdgeUnresolved() { ingMetrics.init(); ingMetrics.edgesUnresolved.Inc() }
func recordBatchSent()      { ingMetrics.init(); ingMetrics.batchesSent.Inc() }
