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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestMetricsHookCountsByOperationAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewMetricsHook(reg, "test")
	require.NoError(t, err)

	ctx := context.Background()
	events := []*bun.QueryEvent{
		{Query: "SELECT 1", StartTime: time.Now()},
		{Query: "SELECT * FROM members WHERE id = 9", StartTime: time.Now(), Err: sql.ErrNoRows},
		{Query: "UPDATE members SET age = age + 1", StartTime: time.Now()},
	}
	for _, e := range events {
		hook.AfterQuery(hook.BeforeQuery(ctx, e), e)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("SELECT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("SELECT", "no_rows")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("UPDATE", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(hook.duration))
}

func TestMetricsHookReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetricsHook(reg, "test")
	require.NoError(t, err)
	second, err := NewMetricsHook(reg, "test")
	require.NoError(t, err)

	e := &bun.QueryEvent{Query: "DELETE FROM items", StartTime: time.Now()}
	first.AfterQuery(context.Background(), e)
	second.AfterQuery(context.Background(), e)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.queries.WithLabelValues("DELETE", "ok")))
}
