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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datajpa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "datajpa", cfg.Database.Name)
	assert.Equal(t, 3*time.Second, cfg.Repository.LockTimeout)
	assert.True(t, cfg.Migrate.OnStartup)
	assert.Equal(t, "dev", cfg.Seed.Environment)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
database:
  type: postgres
  host: db.local
  port: 5432
  username: jpa
  name: tutorial
  slow_query_time: 500ms
repository:
  lock_timeout: 250ms
logging:
  level: debug
`)
	t.Setenv("DATAJPA_DATABASE_PASSWORD", "secret")
	t.Setenv("DATAJPA_SEED_ENVIRONMENT", "test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.SlowQueryTime)
	assert.Equal(t, 250*time.Millisecond, cfg.Repository.LockTimeout)
	assert.Equal(t, "test", cfg.Seed.Environment)
	assert.Len(t, cfg.RepositoryOptions(), 2)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown type":  "database:\n  type: oracle\n",
		"missing host":  "database:\n  type: mysql\n  host: \"\"\n",
		"bad log level": "logging:\n  level: loud\n",
		"negative lock": "repository:\n  lock_timeout: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestConfigLoader(t *testing.T) {
	cfg, err := Load(writeFile(t, `
database:
  type: MySQL
  host: 127.0.0.1
  port: 3306
  name: tutorial
  max_open_conns: 0
  enable_metrics: true
migrate:
  foreign_key_file: fk.yaml
seed:
  path: sql
  environment: test
`))
	require.NoError(t, err)

	dc := cfg.ConfigLoader()
	assert.Equal(t, "mysql", dc.ConnectionConfig.Type)
	assert.Equal(t, 3306, dc.ConnectionConfig.Port)
	assert.Equal(t, "tutorial", dc.ConnectionConfig.DBName)
	assert.Equal(t, 100, dc.ConnectionConfig.MaxOpenConns)
	assert.True(t, dc.ConnectionConfig.EnableMetrics)
	assert.Equal(t, "fk.yaml", dc.DataMigrateConfig.ForeignKeyFile)
	assert.Equal(t, "sql", dc.DataInitConfig.Filepath)
	assert.Equal(t, "test", dc.DataInitConfig.Environment)
}
