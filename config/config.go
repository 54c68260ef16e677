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

// Package config loads datajpa settings from a YAML file and DATAJPA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/utils"
)

// EnvPrefix is prepended to every environment key, e.g. DATAJPA_DATABASE_HOST.
const EnvPrefix = "DATAJPA"

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrate    MigrateConfig    `mapstructure:"migrate"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig holds connection and pool settings.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	EnableReconnect bool          `mapstructure:"enable_reconnect"`
	EnableQueryLog  bool          `mapstructure:"enable_query_log"`
	SlowQueryTime   time.Duration `mapstructure:"slow_query_time"`
	EnableMetrics   bool          `mapstructure:"enable_metrics"`
}

type MigrateConfig struct {
	OnStartup      bool   `mapstructure:"on_startup"`
	ForeignKeys    bool   `mapstructure:"foreign_keys"`
	ForeignKeyFile string `mapstructure:"foreign_key_file"`
}

// SeedConfig points at the SQL seed tree: <path>/common and <path>/<environment>.
type SeedConfig struct {
	OnStartup   bool   `mapstructure:"on_startup"`
	OnMigration bool   `mapstructure:"on_migration"`
	Path        string `mapstructure:"path"`
	Environment string `mapstructure:"environment"`
}

type RepositoryConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "datajpa")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.enable_reconnect", true)
	v.SetDefault("database.enable_query_log", false)
	v.SetDefault("database.slow_query_time", "2s")
	v.SetDefault("database.enable_metrics", false)

	v.SetDefault("migrate.on_startup", true)
	v.SetDefault("migrate.foreign_keys", true)
	v.SetDefault("migrate.foreign_key_file", "configs/foreign_keys.yaml")

	v.SetDefault("seed.on_startup", false)
	v.SetDefault("seed.on_migration", true)
	v.SetDefault("seed.path", "configs/sql")
	v.SetDefault("seed.environment", "dev")

	v.SetDefault("repository.lock_timeout", repository.DefaultLockTimeout.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads path when given, otherwise looks for datajpa.yaml in the working
// directory and ./configs. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("datajpa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"warning": true, "error": true, "fatal": true, "panic": true,
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql", "mysql":
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}
	if c.Database.Name == "" {
		return errors.New("database name is required")
	}
	if c.Repository.LockTimeout < 0 {
		return fmt.Errorf("negative lock timeout: %s", c.Repository.LockTimeout)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// ConfigLoader converts to the database package's configuration, filling
// anything left unset from database.DefaultConnectionConfig.
func (c *Config) ConfigLoader() *database.Config {
	conn := *database.DefaultConnectionConfig()
	conn.Type = strings.ToLower(c.Database.Type)
	conn.Host = c.Database.Host
	conn.Port = c.Database.Port
	conn.Username = c.Database.Username
	conn.Password = c.Database.Password
	conn.DBName = c.Database.Name
	conn.SSLMode = c.Database.SSLMode
	if c.Database.MaxIdleConns > 0 {
		conn.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.MaxOpenConns > 0 {
		conn.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.ConnMaxLifetime > 0 {
		conn.ConnMaxLifetime = c.Database.ConnMaxLifetime
	}
	conn.EnableReconnect = c.Database.EnableReconnect
	conn.EnableQueryLog = c.Database.EnableQueryLog
	conn.SlowQueryTime = c.Database.SlowQueryTime
	conn.EnableMetrics = c.Database.EnableMetrics

	return &database.Config{
		ConnectionConfig: conn,
		DataMigrateConfig: database.DataMigrateConfig{
			EnableMigrateOnStartup: c.Migrate.OnStartup,
			EnableForeignKey:       c.Migrate.ForeignKeys,
			ForeignKeyFile:         c.Migrate.ForeignKeyFile,
		},
		DataInitConfig: database.DataInitConfig{
			AutoInitOnStartup:   c.Seed.OnStartup,
			AutoInitOnMigration: c.Seed.OnMigration,
			Filepath:            c.Seed.Path,
			Environment:         c.Seed.Environment,
		},
	}
}

// RepositoryOptions returns the repository options implied by the config.
func (c *Config) RepositoryOptions() []repository.Option {
	opts := []repository.Option{repository.WithLogger(database.GetLogger())}
	if c.Repository.LockTimeout > 0 {
		opts = append(opts, repository.WithLockTimeout(c.Repository.LockTimeout))
	}
	return opts
}

// ApplyLogging configures the named loggers. Call it before the first
// logger is created so the format applies to all of them.
func (c *Config) ApplyLogging() {
	utils.ConfigureConsoleLogFormat(c.Logging.Format)
	utils.ConfigureLogLevel(c.Logging.Level)
}

var _ database.AbstractDatabaseConfigProvider = (*Config)(nil)
