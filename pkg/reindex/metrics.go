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

package reindex

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsReindex holds Prometheus metrics for the incremental re-index
// path, generalizing pkg/ingestion/metrics.go's per-run metrics to the
// watch-triggered cycle the teacher never metered.
type metricsReindex struct {
	once sync.Once

	cyclesTotal    prometheus.Counter
	cyclesFailed   prometheus.Counter
	filesPerCycle  prometheus.Histogram
	cycleDuration  prometheus.Histogram
}

var reindexMetrics metricsReindex

func (m *metricsReindex) init() {
	m.once.Do(func() {
		m.cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_reindex_cycles_total", Help: "Watch-triggered re-index cycles completed"})
		m.cyclesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "isg_reindex_cycles_failed_total", Help: "Watch-triggered re-index cycles that errored"})

		sizeBuckets := []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}
		m.filesPerCycle = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_reindex_files_per_cycle", Help: "Files parsed per re-index cycle", Buckets: sizeBuckets})

		durBuckets := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "isg_reindex_cycle_seconds", Help: "Wall-clock duration of a re-index cycle", Buckets: durBuckets})

		prometheus.MustRegister(m.cyclesTotal, m.cyclesFailed, m.filesPerCycle, m.cycleDuration)
	})
}

func recordCycleSuccess(filesParsed int, duration float64) {
	reindexMetrics.init()
	reindexMetrics.cyclesTotal.Inc()
	reindexMetrics.filesPerCycle.Observe(float64(filesParsed))
	reindexMetrics.cycleDuration.Observe(duration)
}

func recordCycleFailure() {
	reindexMetrics.init()
	reindexMetrics.cyclesFailed.Inc()
}
