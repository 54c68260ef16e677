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
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
	globalConfig  *Config
)

// GetDB returns the database opened by InitDB, or nil.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetDB()
}

// GetDatabaseManager returns the manager created by InitDB, or nil.
func GetDatabaseManager() AbstractDatabaseManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetManager()
}

// InitDB opens the process-wide database described by cfg, creating tables
// and seeding data as the configuration asks. Models must be registered
// before the call.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	err = factory.InitializeDatabase(ctx,
		cfg.DataMigrateConfig.EnableMigrateOnStartup,
		cfg.DataInitConfig.AutoInitOnStartup,
	)
	if err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := manager.GetDB()
	db.RegisterModel(RegisteredModelInstances()...)

	globalMu.Lock()
	previous := globalFactory
	globalFactory, globalConfig = factory, cfg
	globalMu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	return db, nil
}

// CloseDB closes the process-wide database.
func CloseDB() error {
	globalMu.Lock()
	factory := globalFactory
	globalFactory, globalConfig = nil, nil
	globalMu.Unlock()
	if factory == nil {
		return nil
	}
	return factory.Close()
}

// GetHealthStatus checks the process-wide database.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if m := GetDatabaseManager(); m != nil {
		return m.HealthCheck(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

// GetDatabaseStats returns pool statistics of the process-wide database.
func GetDatabaseStats() *DBStats {
	if m := GetDatabaseManager(); m != nil {
		return m.GetStats()
	}
	return &DBStats{}
}

// RunMigrations migrates the process-wide database.
func RunMigrations(ctx context.Context) error {
	m := GetDatabaseManager()
	if m == nil {
		return fmt.Errorf("database not initialized")
	}
	return m.RunMigrations(ctx)
}

// InitData seeds the process-wide database for environment, or for the
// configured environment when it is empty.
func InitData(ctx context.Context, environment string) error {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if environment == "" {
		environment = cfg.environment()
	}
	sqlManager := NewSQLInitManager(db, environment)
	sqlManager.SetSQLRootPath(cfg.sqlPath())
	return sqlManager.ExecuteInitialization(ctx)
}
