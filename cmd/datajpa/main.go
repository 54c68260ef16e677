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

// Command datajpa connects to the configured store, migrates and seeds it,
// then walks through the repository features against a small data set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "", "path to a datajpa YAML file")
	envFile := flag.StringP("env-file", "e", ".env", "dotenv file loaded before the config")
	actor := flag.String("actor", "cli", "actor recorded in created_by and last_modified_by")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()
	log := database.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = audit.WithActor(ctx, *actor)

	entity.Register()
	db, err := database.InitDB(ctx, cfg.ConfigLoader())
	if err != nil {
		return err
	}
	defer func() { _ = database.CloseDB() }()

	opts := cfg.RepositoryOptions()
	teams := repository.NewTeamRepository(db, opts...)
	members := repository.NewMemberRepository(db, opts...)

	teamA, err := teams.Save(ctx, entity.NewTeam("teamA"))
	if err != nil {
		return err
	}
	teamB, err := teams.Save(ctx, entity.NewTeam("teamB"))
	if err != nil {
		return err
	}
	_, err = members.SaveAll(ctx,
		entity.NewMember("member1", 10, teamA),
		entity.NewMember("member2", 19, teamA),
		entity.NewMember("member3", 20, teamB),
		entity.NewMember("member4", 21, teamB),
		entity.NewMember("member5", 40, nil),
	)
	if err != nil {
		return err
	}

	found, err := members.FindByUsernameAndAgeGreaterThan(ctx, "member4", 20)
	if err != nil {
		return err
	}
	log.Info("derived query", "method", "findByUsernameAndAgeGreaterThan", "rows", len(found))

	page, err := members.Page(ctx, spec.Ge("age", 10),
		types.NewPageRequest(1, 3, types.By(types.Desc("username"))))
	if err != nil {
		return err
	}
	log.Info("page", "page", page.Page, "size", len(page.Items), "total", page.Total, "pages", page.TotalPages())

	bumped, err := members.BulkAgePlus(ctx, 20)
	if err != nil {
		return err
	}
	log.Info("bulk update", "rows", bumped)

	dtos, err := members.FindMemberDto(ctx)
	if err != nil {
		return err
	}
	for _, dto := range dtos {
		log.Info("member dto", "id", dto.ID, "username", dto.Username, "team", dto.TeamName)
	}

	views, err := members.FindProjectionsByUsername(ctx, "member1", entity.UsernameOnly)
	if err != nil {
		return err
	}
	log.Info("open projection", "rows", views)

	teamMembers, err := members.FindAllBySpec(ctx, spec.And(entity.Username("member1"), entity.TeamName("teamA")))
	if err != nil {
		return err
	}
	log.Info("specification", "rows", len(teamMembers))

	return repository.RunInTx(ctx, db, func(ctx context.Context) error {
		locked, err := members.FindLockByUsername(ctx, "member1")
		if err != nil {
			return err
		}
		for _, m := range locked {
			m.Age++
			if _, err := members.Save(ctx, m); err != nil {
				return err
			}
		}
		log.Info("pessimistic lock", "rows", len(locked))
		return nil
	})
}
