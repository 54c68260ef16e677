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

package spec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

// Join describes a one-hop many-to-one join from the base table.
type Join struct {
	Name       string // path segment, e.g. "team"
	ForeignKey string // column on the base table
	Table      string // joined table name
	Key        string // referenced column on the joined table
}

// Column is a resolved field reference.
type Column struct {
	Name string
	Join *Join
}

// Resolver maps field names used in predicates to columns.
type Resolver interface {
	Resolve(field string) (Column, error)
}

// Scope controls how base columns are qualified in the compiled fragment.
type Scope int

const (
	// Qualified prefixes base columns with ?TableAlias, for SELECT queries
	// that may join other tables.
	Qualified Scope = iota
	// Unqualified leaves base columns bare, for UPDATE and DELETE statements.
	Unqualified
)

type compiler struct {
	resolver Resolver
	scope    Scope
	args     []interface{}
}

// Compile translates p into one WHERE fragment. The identity compiles to nil.
func Compile(p Predicate, r Resolver, scope Scope) (*types.QueryFilter, error) {
	if p == nil || p.IsIdentity() {
		return nil, nil
	}
	c := &compiler{resolver: r, scope: scope}
	schema, err := p.compile(c)
	if err != nil {
		return nil, err
	}
	return types.NewQueryFilter(schema, c.args...), nil
}

func (c *compiler) base(column string) string {
	c.args = append(c.args, bun.Ident(column))
	if c.scope == Qualified {
		return "?TableAlias.?"
	}
	return "?"
}

func (c *Condition) compile(comp *compiler) (string, error) {
	col, err := comp.resolver.Resolve(c.Field)
	if err != nil {
		return "", err
	}
	if c.Op == OpIn {
		v := reflect.ValueOf(c.Value)
		if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
			return "", types.NewValidationError(c.Field, "IN expects a slice, got %T", c.Value)
		}
		if v.Len() == 0 {
			return "1 = 0", nil
		}
	}
	if col.Join == nil {
		lhs := comp.base(col.Name)
		return c.comparison(comp, lhs)
	}
	// team.name = ? becomes team_id IN (SELECT id FROM teams WHERE name = ?)
	// so the same fragment serves SELECT, COUNT and UPDATE.
	outer := comp.base(col.Join.ForeignKey)
	comp.args = append(comp.args, bun.Ident(col.Join.Key), bun.Ident(col.Join.Table), bun.Ident(col.Name))
	inner, err := c.comparison(comp, "?")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s IN (SELECT ? FROM ? WHERE %s)", outer, inner), nil
}

func (c *Condition) comparison(comp *compiler, lhs string) (string, error) {
	switch c.Op {
	case OpIsNull:
		return lhs + " IS NULL", nil
	case OpNotNull:
		return lhs + " IS NOT NULL", nil
	case OpIn:
		comp.args = append(comp.args, bun.In(c.Value))
		return lhs + " IN (?)", nil
	}
	if c.Value == nil {
		switch c.Op {
		case OpEq:
			return lhs + " IS NULL", nil
		case OpNe:
			return lhs + " IS NOT NULL", nil
		}
		return "", types.NewValidationError(c.Field, "operator %s needs a value", c.Op)
	}
	sqlOp, ok := operatorSQL[c.Op]
	if !ok {
		return "", types.NewValidationError(c.Field, "unsupported operator %d", int(c.Op))
	}
	comp.args = append(comp.args, c.Value)
	return lhs + " " + sqlOp + " ?", nil
}

func (j *junction) compile(comp *compiler) (string, error) {
	parts := make([]string, 0, len(j.children))
	for _, child := range j.children {
		s, err := child.compile(comp)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+j.op+" ") + ")", nil
}

func (n *negation) compile(comp *compiler) (string, error) {
	s, err := n.child.compile(comp)
	if err != nil {
		return "", err
	}
	return "NOT (" + s + ")", nil
}

func formatValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprintf("%v", v)
}
