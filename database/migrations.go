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
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// MigrationManager creates the tables of the registered models and applies
// the optional foreign key and seed steps once per database.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	cfg    *Config
}

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:datajpa_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager returns a manager; a nil cfg only creates tables.
func NewMigrationManager(db *bun.DB, logger Logger, cfg *Config) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &MigrationManager{db: db, logger: logger, cfg: cfg}
}

// RunMigrations applies every pending migration in version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := mm.Migrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for _, m := range migrations {
		if err := mm.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed!")
	return nil
}

// Migrations lists the steps enabled by the configuration.
func (mm *MigrationManager) Migrations() []MigrationItem {
	migrations := []MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create tables of the registered models",
		Up:          mm.createBaseTables,
	}}
	if mm.cfg.DataMigrateConfig.EnableForeignKey {
		migrations = append(migrations, MigrationItem{
			Version:     "002",
			Name:        "add_foreign_keys",
			Description: "Add table foreign key constraints",
			Up:          mm.addForeignKeys,
		})
	}
	if mm.cfg.DataInitConfig.AutoInitOnMigration {
		migrations = append(migrations, MigrationItem{
			Version:     "003",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, m MigrationItem) error {
	applied, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", m.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     m.Version,
			Name:        m.Name,
			AppliedAt:   time.Now(),
			Description: m.Description,
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", m.Version, "name", m.Name)
	return nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	// SQLite cannot add constraints to existing tables, so its foreign keys
	// come from the belongs-to relations of the models.
	withFKs := db.Dialect().Name() == dialect.SQLite
	for _, model := range RegisteredModelInstances() {
		q := db.NewCreateTable().Model(model).IfNotExists()
		if withFKs {
			q = q.WithForeignKeys()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", modelName(model), err)
		}
	}
	return nil
}

func (mm *MigrationManager) addForeignKeys(ctx context.Context, db bun.IDB) error {
	fkm, err := LoadForeignKeyManager(mm.logger, mm.cfg.DataMigrateConfig.ForeignKeyFile)
	if err != nil {
		return err
	}
	if errs := fkm.Validate(); len(errs) > 0 {
		for _, e := range errs {
			mm.logger.Debug("Foreign key constraint validation failed", "error", e.Error())
		}
		return fmt.Errorf("foreign key constraint validation failed, %d errors in total", len(errs))
	}
	return fkm.AddAllForeignKeys(ctx, db)
}

// InitData runs the SQL seed files outside the migration log.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db bun.IDB) error {
	sqlManager := NewSQLInitManager(db, mm.cfg.environment())
	sqlManager.SetSQLRootPath(mm.cfg.sqlPath())
	sqlManager.SetLogger(mm.logger)
	if err := sqlManager.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
