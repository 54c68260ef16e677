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
	"strings"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

type mutationOp int

const (
	opSet mutationOp = iota
	opAdd
)

type assignment struct {
	field string
	op    mutationOp
	value interface{}
}

// Mutation is the SET list of a bulk update.
type Mutation struct {
	assignments []assignment
}

// Set assigns value to field.
func Set(field string, value interface{}) Mutation {
	return Mutation{[]assignment{{field, opSet, value}}}
}

// Add increments field by delta, e.g. Add("age", 1) for age = age + 1.
func Add(field string, delta interface{}) Mutation {
	return Mutation{[]assignment{{field, opAdd, delta}}}
}

// And appends the assignments of other.
func (m Mutation) And(other Mutation) Mutation {
	out := make([]assignment, 0, len(m.assignments)+len(other.assignments))
	out = append(out, m.assignments...)
	out = append(out, other.assignments...)
	return Mutation{out}
}

func (m Mutation) IsEmpty() bool { return len(m.assignments) == 0 }

// Fields lists the assigned fields in order.
func (m Mutation) Fields() []string {
	fields := make([]string, len(m.assignments))
	for i, a := range m.assignments {
		fields[i] = a.field
	}
	return fields
}

func (m Mutation) String() string {
	parts := make([]string, len(m.assignments))
	for i, a := range m.assignments {
		if a.op == opAdd {
			parts[i] = a.field + " = " + a.field + " + " + formatValue(a.value)
		} else {
			parts[i] = a.field + " = " + formatValue(a.value)
		}
	}
	return strings.Join(parts, ", ")
}

// CompileMutation translates m into SET fragments. Only base columns may be assigned.
func CompileMutation(m Mutation, r Resolver) ([]*types.QueryFilter, error) {
	if m.IsEmpty() {
		return nil, types.NewValidationError("", "bulk update needs at least one assignment")
	}
	sets := make([]*types.QueryFilter, 0, len(m.assignments))
	for _, a := range m.assignments {
		col, err := r.Resolve(a.field)
		if err != nil {
			return nil, err
		}
		if col.Join != nil {
			return nil, types.NewValidationError(a.field, "cannot assign a joined column")
		}
		switch a.op {
		case opAdd:
			if a.value == nil {
				return nil, types.NewValidationError(a.field, "increment needs a value")
			}
			sets = append(sets, types.NewQueryFilter("? = ? + ?", bun.Ident(col.Name), bun.Ident(col.Name), a.value))
		default:
			sets = append(sets, types.NewQueryFilter("? = ?", bun.Ident(col.Name), a.value))
		}
	}
	return sets, nil
}
