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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSQL(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements(`
-- teams
INSERT INTO teams (name)
VALUES ('teamA');

INSERT INTO teams (name) VALUES ('teamB');
SELECT 1`)
	require.Len(t, stmts, 3)
	assert.Equal(t, "INSERT INTO teams (name) VALUES ('teamA');", stmts[0])
	assert.Equal(t, "SELECT 1", stmts[2])
	assert.Empty(t, splitSQLStatements("-- only a comment\n\n"))
}

func TestParseFileOrder(t *testing.T) {
	assert.Equal(t, 1, parseFileOrder("001_items.sql"))
	assert.Equal(t, 20, parseFileOrder("20_members.sql"))
	assert.Equal(t, 999, parseFileOrder("members.sql"))
}

func TestGetSQLFilesOrder(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, root, "common/010_b.sql", "SELECT 1;")
	writeSQL(t, root, "common/002_a.sql", "SELECT 1;")
	writeSQL(t, root, "environments/test/001_first.sql", "SELECT 1;")
	writeSQL(t, root, "environments/test/notes.txt", "ignored")
	writeSQL(t, root, "environments/prod/001_prod.sql", "SELECT 1;")

	m := NewSQLInitManager(nil, "test")
	m.SetSQLRootPath(root)
	files, err := m.GetSQLFiles()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"002_a.sql", "010_b.sql", "001_first.sql"}, names)
	assert.Equal(t, "test", files[2].Environment)
}

func TestReplaceEnvVariables(t *testing.T) {
	t.Setenv("DATAJPA_SEED_OWNER", "tutorial")
	m := NewSQLInitManager(nil, "dev")

	out, err := m.replaceEnvVariables("INSERT INTO t VALUES ('{{ .ENVIRONMENT }}', '{{ .DATAJPA_SEED_OWNER }}', '{{ .TIMESTAMP }}');")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "INSERT INTO t VALUES ('dev', 'tutorial', '"))
	assert.NotContains(t, out, "{{")

	plain := "SELECT '{ not a template }';"
	out, err = m.replaceEnvVariables(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	_, err = m.replaceEnvVariables("SELECT {{ .Broken")
	assert.Error(t, err)
}
