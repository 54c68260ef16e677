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

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
)

var epoch = time.Date(2026, 10, 14, 9, 30, 0, 123456789, time.UTC)

// openDB returns a migrated sqlite database in a temporary directory.
func openDB(t *testing.T) *bun.DB {
	t.Helper()
	entity.Register()

	conn := *database.DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = filepath.Join(t.TempDir(), "datajpa")
	conn.HealthCheckInterval = 0
	conn.SlowQueryTime = 0
	m := database.NewDatabaseManager(&database.Config{ConnectionConfig: conn})

	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })
	require.NoError(t, m.RunMigrations(ctx))
	return m.GetDB()
}

type fixture struct {
	db      *bun.DB
	clock   *clockwork.FakeClock
	members *MemberRepository
	teams   *TeamRepository
	items   *ItemRepository
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := openDB(t)
	clock := clockwork.NewFakeClockAt(epoch)
	opts = append([]Option{WithClock(clock), WithAuditor(audit.Static("tester"))}, opts...)
	return &fixture{
		db:      db,
		clock:   clock,
		members: NewMemberRepository(db, opts...),
		teams:   NewTeamRepository(db, opts...),
		items:   NewItemRepository(db, opts...),
	}
}

// seedTutorial stores teamA with member1 and member2, teamB with member3 and
// member4, and member5 without a team.
func (f *fixture) seedTutorial(t *testing.T) (teamA, teamB *entity.Team) {
	t.Helper()
	ctx := context.Background()
	teamA, teamB = entity.NewTeam("teamA"), entity.NewTeam("teamB")
	_, err := f.teams.SaveAll(ctx, teamA, teamB)
	require.NoError(t, err)
	_, err = f.members.SaveAll(ctx,
		entity.NewMember("member1", 10, teamA),
		entity.NewMember("member2", 19, teamA),
		entity.NewMember("member3", 20, teamB),
		entity.NewMember("member4", 21, teamB),
		entity.NewMember("member5", 40, nil),
	)
	require.NoError(t, err)
	return teamA, teamB
}

func ids(members []*entity.Member) []int64 {
	out := make([]int64, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}
