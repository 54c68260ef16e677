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
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "sqlite"}

// BaseDatabaseFactory builds one manager from a Config and drives its startup.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig builds the manager for cfg after applying the DB_*
// environment overrides.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(&cfg.ConnectionConfig)
	if _, _, _, err := DataSource(&cfg.ConnectionConfig); err != nil {
		return nil, fmt.Errorf("%w, supported types: %v", err, supportedTypes)
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

// overrideFromEnv lets DB_* variables win over file configuration.
// Durations are given in seconds.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	secs := func(key string, dst *time.Duration) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = time.Duration(v) * time.Second
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}

	str("DB_TYPE", &cfg.Type)
	str("DB_HOST", &cfg.Host)
	num("DB_PORT", &cfg.Port)
	str("DB_USERNAME", &cfg.Username)
	str("DB_PASSWORD", &cfg.Password)
	str("DB_NAME", &cfg.DBName)
	str("DB_SSLMODE", &cfg.SSLMode)

	num("DB_MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	num("DB_MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	secs("DB_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)

	flag("DB_ENABLE_RECONNECT", &cfg.EnableReconnect)
	secs("DB_RECONNECT_INTERVAL", &cfg.ReconnectInterval)

	flag("DB_ENABLE_QUERY_LOG", &cfg.EnableQueryLog)
	flag("DB_ENABLE_METRICS", &cfg.EnableMetrics)
}

// InitializeDatabase connects, then optionally migrates and seeds.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations, initData bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	if initData {
		if err := f.manager.InitData(ctx); err != nil {
			return fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// Close closes the database connection managed by the factory.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}
