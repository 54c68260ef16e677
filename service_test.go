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

package datajpa

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
)

func initSqlite(t *testing.T) {
	t.Helper()
	entity.Register()
	conn := *database.DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = filepath.Join(t.TempDir(), "service")
	conn.HealthCheckInterval = 0
	conn.SlowQueryTime = 0
	cfg := &database.Config{
		ConnectionConfig:  conn,
		DataMigrateConfig: database.DataMigrateConfig{EnableMigrateOnStartup: true},
	}
	_, err := database.InitDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
}

func TestService(t *testing.T) {
	teams := NewService[entity.Team, int64](repository.WithAuditor(audit.Static("svc")))
	members := NewService[entity.Member, int64](repository.WithAuditor(audit.Static("svc")))
	initSqlite(t)
	ctx := context.Background()

	team := entity.NewTeam("teamA")
	require.NoError(t, teams.Save(ctx, team))
	require.NoError(t, members.Save(ctx,
		entity.NewMember("member1", 10, team),
		entity.NewMember("member2", 20, team),
		entity.NewMember("member3", 30, nil),
	))

	all, err := members.All(ctx, types.By(types.Desc("age")))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "member3", all[0].Username)
	assert.Equal(t, "svc", all[0].CreatedBy)

	inTeam, err := members.List(ctx, entity.TeamName("teamA"), nil)
	require.NoError(t, err)
	assert.Len(t, inTeam, 2)

	page, err := members.Page(ctx, nil, types.NewDefaultPageRequest(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	n, err := members.BulkUpdate(ctx, spec.Ge("age", 20), spec.Add("age", 5))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := members.Get(ctx, all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Age)

	require.NoError(t, members.Delete(ctx, got))
	_, ok, err := members.Find(ctx, got.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = members.Get(ctx, got.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestServiceTransaction(t *testing.T) {
	items := NewService[entity.Item, int64]()
	initSqlite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := items.Transaction(ctx, func(ctx context.Context) error {
		if err := items.Save(ctx, entity.NewItem("itemA")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = items.Transaction(ctx, func(ctx context.Context) error {
		return items.Save(ctx, entity.NewItem("itemB"))
	})
	require.NoError(t, err)

	all, err := items.All(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "itemB", all[0].Name)

	require.NoError(t, items.SaveOrUpdate(ctx, []string{"name"}, nil, &entity.Item{ID: all[0].ID, Name: "itemC"}))
	got, err := items.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "itemC", got.Name)
	assert.NotNil(t, items.Repository().DB())
}
