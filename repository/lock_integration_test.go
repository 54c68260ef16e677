//go:build integration

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
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
)

// newPostgresFixture starts a postgres container with the foreign keys of
// configs/foreign_keys.yaml applied.
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("datajpa"),
		postgres.WithUsername("datajpa"),
		postgres.WithPassword("datajpa"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	entity.Register()
	conn := *database.DefaultConnectionConfig()
	conn.Type = "postgres"
	conn.Host = host
	conn.Port = port.Int()
	conn.Username = "datajpa"
	conn.Password = "datajpa"
	conn.DBName = "datajpa"
	conn.SSLMode = "disable"
	conn.HealthCheckInterval = 0
	m := database.NewDatabaseManager(&database.Config{
		ConnectionConfig: conn,
		DataMigrateConfig: database.DataMigrateConfig{
			EnableForeignKey: true,
			ForeignKeyFile:   "../configs/foreign_keys.yaml",
		},
	})
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })
	require.NoError(t, m.RunMigrations(ctx))

	db := m.GetDB()
	clock := clockwork.NewFakeClockAt(epoch)
	opts := []Option{WithClock(clock), WithAuditor(audit.Static("tester"))}
	return &fixture{
		db:      db,
		clock:   clock,
		members: NewMemberRepository(db, opts...),
		teams:   NewTeamRepository(db, opts...),
		items:   NewItemRepository(db, opts...),
	}
}

func TestPostgresRowLocks(t *testing.T) {
	f := newPostgresFixture(t)
	f.seedTutorial(t)
	ctx := context.Background()

	t.Run("serializes", func(t *testing.T) {
		locked := make(chan struct{})
		var waited time.Duration
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return RunInTx(gctx, f.db, func(ctx context.Context) error {
				members, err := f.members.FindLockByUsername(ctx, "member3")
				close(locked)
				if err != nil {
					return err
				}
				time.Sleep(250 * time.Millisecond)
				members[0].Age++
				_, err = f.members.Save(ctx, members[0])
				return err
			})
		})
		g.Go(func() error {
			<-locked
			start := time.Now()
			return RunInTx(gctx, f.db, func(ctx context.Context) error {
				members, err := f.members.FindLockByUsername(ctx, "member3")
				if err != nil {
					return err
				}
				waited = time.Since(start)
				members[0].Age++
				_, err = f.members.Save(ctx, members[0])
				return err
			})
		})
		require.NoError(t, g.Wait())
		assert.GreaterOrEqual(t, waited, 150*time.Millisecond)

		got, err := f.members.FindByUsername(ctx, "member3")
		require.NoError(t, err)
		assert.Equal(t, 22, got[0].Age)
	})

	t.Run("other rows stay free", func(t *testing.T) {
		err := RunInTx(ctx, f.db, func(ctx context.Context) error {
			_, err := f.members.FindLockByUsername(ctx, "member1")
			if err != nil {
				return err
			}
			impatient := NewMemberRepository(f.db, WithLockTimeout(100*time.Millisecond))
			return RunInTx(context.Background(), f.db, func(ctx context.Context) error {
				other, err := impatient.FindLockByUsername(ctx, "member2")
				if err == nil {
					assert.Len(t, other, 1)
				}
				return err
			})
		})
		require.NoError(t, err)
	})

	t.Run("times out", func(t *testing.T) {
		impatient := NewMemberRepository(f.db, WithLockTimeout(100*time.Millisecond))
		err := RunInTx(ctx, f.db, func(ctx context.Context) error {
			_, err := f.members.FindLockByUsername(ctx, "member4")
			if err != nil {
				return err
			}
			return RunInTx(context.Background(), f.db, func(ctx context.Context) error {
				_, err := impatient.FindLockByUsername(ctx, "member4")
				return err
			})
		})
		require.ErrorIs(t, err, ErrLockTimeout)
		var lte *LockTimeoutError
		require.ErrorAs(t, err, &lte)
		assert.Equal(t, 100*time.Millisecond, lte.Timeout)
	})
}

func TestPostgresConstraintViolation(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	missing := int64(9999)
	m := entity.NewMember("orphan", 1, nil)
	m.TeamID = &missing
	_, err := f.members.Save(ctx, m)
	require.ErrorIs(t, err, ErrConstraintViolation)
	var cve *ConstraintViolationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, "foreign key", cve.Kind)

	team, err := f.teams.Save(ctx, entity.NewTeam("teamA"))
	require.NoError(t, err)
	member, err := f.members.Save(ctx, entity.NewMember("member1", 10, team))
	require.NoError(t, err)
	require.NoError(t, f.teams.Delete(ctx, team))

	reloaded, err := f.members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TeamID)
}

func TestPostgresUpsert(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	m, err := f.members.Save(ctx, entity.NewMember("member1", 10, nil))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.members.Upsert(ctx, []string{"age"}, nil, &entity.Member{ID: m.ID, Username: "member1", Age: 11}))

	got, err := f.members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Age)
	assert.True(t, got.CreatedAt.Equal(m.CreatedAt))
}
