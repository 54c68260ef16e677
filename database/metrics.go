/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// MetricsHook counts queries by operation and outcome and observes their
// latency.
type MetricsHook struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ bun.QueryHook = (*MetricsHook)(nil)

// NewMetricsHook registers the collectors on reg. Registering twice on the
// same registerer reuses the collectors already there.
func NewMetricsHook(reg prometheus.Registerer, namespace string) (*MetricsHook, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "queries_total",
		Help:      "Number of executed queries by operation and status.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Query latency by operation.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"operation"})

	if err := reg.Register(queries); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		queries = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &MetricsHook{queries: queries, duration: duration}, nil
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	op := event.Operation()
	h.queries.WithLabelValues(op, queryStatus(event.Err)).Inc()
	h.duration.WithLabelValues(op).Observe(time.Since(event.StartTime).Seconds())
}

func queryStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sql.ErrNoRows):
		return "no_rows"
	}
	if ok, kind := IsSqlError(err); ok && kind == LockTimeoutErr {
		return "lock_timeout"
	}
	return "error"
}
