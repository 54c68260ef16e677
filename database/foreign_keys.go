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
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"gopkg.in/yaml.v3"
)

var validActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
}

// ForeignKeyConfig is the YAML document listing foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
}

// Name returns the explicit constraint name or fk_<table>_<column>.
func (fk *ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// SQL returns the ALTER TABLE statement adding the constraint.
func (fk *ForeignKeyConstraint) SQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.Name(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + strings.ToUpper(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + strings.ToUpper(fk.OnUpdate))
	}
	return b.String()
}

// DefaultForeignKeys links members to their team; deleting a team detaches
// its members.
func DefaultForeignKeys() []ForeignKeyConstraint {
	return []ForeignKeyConstraint{
		{
			Table:           "members",
			Column:          "team_id",
			ReferenceTable:  "teams",
			ReferenceColumn: "id",
			OnDelete:        "SET NULL",
		},
	}
}

// ForeignKeyManager adds and validates foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

func NewForeignKeyManager(logger Logger, constraints ...ForeignKeyConstraint) *ForeignKeyManager {
	if len(constraints) == 0 {
		constraints = DefaultForeignKeys()
	}
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// LoadForeignKeyManager reads constraints from a YAML file, falling back to
// DefaultForeignKeys when the file is missing or empty.
func LoadForeignKeyManager(logger Logger, path string) (*ForeignKeyManager, error) {
	if path == "" {
		return NewForeignKeyManager(logger), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if logger != nil {
			logger.Debug("Foreign key file not found, using defaults", "path", path)
		}
		return NewForeignKeyManager(logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var cfg ForeignKeyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file %s: %w", path, err)
	}
	return NewForeignKeyManager(logger, cfg.ForeignKeys...), nil
}

// Export writes the constraints as YAML to path, creating directories.
func (fkm *ForeignKeyManager) Export(path string) error {
	data, err := yaml.Marshal(&ForeignKeyConfig{ForeignKeys: fkm.constraints})
	if err != nil {
		return fmt.Errorf("failed to serialize foreign keys: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// AddAllForeignKeys adds every constraint, logging and skipping the ones the
// store rejects (usually because they already exist). SQLite tables get their
// constraints when they are created and are skipped here.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	if db.Dialect().Name() == dialect.SQLite {
		if fkm.logger != nil {
			fkm.logger.Debug("Skipping foreign keys on sqlite")
		}
		return nil
	}
	for _, fk := range fkm.constraints {
		if _, err := db.ExecContext(ctx, fk.SQL()); err != nil {
			if fkm.logger != nil {
				fkm.logger.Debug("Failed to add foreign key constraint", "constraint", fk.Name(), "error", err.Error())
			}
			continue
		}
		if fkm.logger != nil {
			fkm.logger.Debug("Added foreign key constraint", "constraint", fk.Name())
		}
	}
	return nil
}

// ByTable returns the constraints declared on table.
func (fkm *ForeignKeyManager) ByTable(table string) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, fk := range fkm.constraints {
		if strings.EqualFold(fk.Table, table) {
			out = append(out, fk)
		}
	}
	return out
}

func (fkm *ForeignKeyManager) Constraints() []ForeignKeyConstraint {
	return append([]ForeignKeyConstraint(nil), fkm.constraints...)
}

// Validate reports every incomplete constraint and unknown referential action.
func (fkm *ForeignKeyManager) Validate() []error {
	var errs []error
	for _, fk := range fkm.constraints {
		switch {
		case fk.Table == "":
			errs = append(errs, fmt.Errorf("table name cannot be empty"))
		case fk.Column == "":
			errs = append(errs, fmt.Errorf("column name cannot be empty: %s", fk.Table))
		case fk.ReferenceTable == "" || fk.ReferenceColumn == "":
			errs = append(errs, fmt.Errorf("reference cannot be empty: %s.%s", fk.Table, fk.Column))
		}
		for _, action := range []string{fk.OnDelete, fk.OnUpdate} {
			if action != "" && !validAction(action) {
				errs = append(errs, fmt.Errorf("invalid referential action %s, constraint: %s", action, fk.Name()))
			}
		}
	}
	return errs
}

func validAction(action string) bool {
	for _, a := range validActions {
		if strings.EqualFold(action, a) {
			return true
		}
	}
	return false
}
