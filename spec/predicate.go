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

import "strings"

// Operator is the comparison applied by a Condition.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpIn
	OpIsNull
	OpNotNull
	OpLike
)

var operatorSQL = map[Operator]string{
	OpEq:   "=",
	OpNe:   "<>",
	OpGt:   ">",
	OpGe:   ">=",
	OpLt:   "<",
	OpLe:   "<=",
	OpLike: "LIKE",
}

func (o Operator) String() string {
	switch o {
	case OpIn:
		return "IN"
	case OpIsNull:
		return "IS NULL"
	case OpNotNull:
		return "IS NOT NULL"
	}
	if s, ok := operatorSQL[o]; ok {
		return s
	}
	return "unknown"
}

// Predicate is a filter over the rows of one entity type.
//
// Predicates form a tree of conditions joined by And/Or/Not. A predicate that
// carries no effective condition is the identity and matches every row.
type Predicate interface {
	IsIdentity() bool
	String() string
	compile(c *compiler) (string, error)
}

// Condition compares one field with a value. Field is either a column of the
// entity ("username") or a join path ("team.name").
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

func (c *Condition) IsIdentity() bool { return false }

func (c *Condition) String() string {
	switch c.Op {
	case OpIsNull, OpNotNull:
		return c.Field + " " + c.Op.String()
	}
	return c.Field + " " + c.Op.String() + " " + formatValue(c.Value)
}

func Eq(field string, value interface{}) Predicate { return &Condition{field, OpEq, value} }
func Ne(field string, value interface{}) Predicate { return &Condition{field, OpNe, value} }
func Gt(field string, value interface{}) Predicate { return &Condition{field, OpGt, value} }
func Ge(field string, value interface{}) Predicate { return &Condition{field, OpGe, value} }
func Lt(field string, value interface{}) Predicate { return &Condition{field, OpLt, value} }
func Le(field string, value interface{}) Predicate { return &Condition{field, OpLe, value} }

// In matches rows whose field is one of the elements of values, which must be a slice.
func In(field string, values interface{}) Predicate { return &Condition{field, OpIn, values} }

func IsNull(field string) Predicate  { return &Condition{field, OpIsNull, nil} }
func NotNull(field string) Predicate { return &Condition{field, OpNotNull, nil} }

// Like matches field against an SQL LIKE pattern.
func Like(field string, pattern string) Predicate { return &Condition{field, OpLike, pattern} }

// EqIfPresent is Eq when value is non-blank and the identity otherwise.
func EqIfPresent(field string, value string) Predicate {
	if strings.TrimSpace(value) == "" {
		return All()
	}
	return Eq(field, value)
}

type identity struct{}

// All returns the identity predicate.
func All() Predicate { return identity{} }

func (identity) IsIdentity() bool { return true }

func (identity) String() string { return "ALL" }

func (identity) compile(*compiler) (string, error) { return "", nil }

type junction struct {
	op       string
	children []Predicate
}

// And matches rows that satisfy every effective child.
func And(children ...Predicate) Predicate { return newJunction("AND", children) }

// Or matches rows that satisfy at least one effective child.
func Or(children ...Predicate) Predicate { return newJunction("OR", children) }

func newJunction(op string, children []Predicate) Predicate {
	effective := make([]Predicate, 0, len(children))
	for _, child := range children {
		if child == nil || child.IsIdentity() {
			continue
		}
		effective = append(effective, child)
	}
	switch len(effective) {
	case 0:
		return All()
	case 1:
		return effective[0]
	}
	return &junction{op: op, children: effective}
}

func (j *junction) IsIdentity() bool { return false }

func (j *junction) String() string {
	parts := make([]string, len(j.children))
	for i, child := range j.children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, " "+j.op+" ") + ")"
}

type negation struct {
	child Predicate
}

// Not inverts p. The negation of the identity is still the identity.
func Not(p Predicate) Predicate {
	if p == nil || p.IsIdentity() {
		return All()
	}
	return &negation{child: p}
}

func (n *negation) IsIdentity() bool { return false }

func (n *negation) String() string { return "NOT " + n.child.String() }

// Where starts a fluent chain from p, treating nil as the identity.
func Where(p Predicate) *Builder {
	if p == nil {
		p = All()
	}
	return &Builder{p}
}

// Builder chains predicates left to right.
type Builder struct {
	p Predicate
}

func (b *Builder) And(p Predicate) *Builder { return &Builder{And(b.p, p)} }

func (b *Builder) Or(p Predicate) *Builder { return &Builder{Or(b.p, p)} }

func (b *Builder) Predicate() Predicate { return b.p }
