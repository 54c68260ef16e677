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
	"unicode"

	"github.com/tomoncle/datajpa/types"
)

// Derived is a query parsed from a repository method name.
type Derived struct {
	Subject string // find, count, exists or delete
	Where   Predicate
}

var subjectPrefixes = []struct {
	prefix  string
	subject string
}{
	{"find", "find"},
	{"read", "find"},
	{"get", "find"},
	{"query", "find"},
	{"count", "count"},
	{"exists", "exists"},
	{"delete", "delete"},
}

// suffixes are matched longest first against the trailing words of a property.
var suffixes = []struct {
	words []string
	op    Operator
}{
	{[]string{"Greater", "Than", "Equal"}, OpGe},
	{[]string{"Less", "Than", "Equal"}, OpLe},
	{[]string{"Is", "Not", "Null"}, OpNotNull},
	{[]string{"Greater", "Than"}, OpGt},
	{[]string{"Less", "Than"}, OpLt},
	{[]string{"Not", "Null"}, OpNotNull},
	{[]string{"Is", "Null"}, OpIsNull},
	{[]string{"Null"}, OpIsNull},
	{[]string{"In"}, OpIn},
	{[]string{"Like"}, OpLike},
	{[]string{"Not"}, OpNe},
	{[]string{"Equals"}, OpEq},
	{[]string{"Is"}, OpEq},
}

// Derive parses a method name such as "findByUsernameAndAgeGreaterThan" into a
// predicate bound to args in order. Property names become snake_case fields:
// "TeamName" yields "team_name", which resolvers may map to the join path
// "team.name".
func Derive(method string, args ...interface{}) (*Derived, error) {
	subject := ""
	rest := ""
	for _, p := range subjectPrefixes {
		if strings.HasPrefix(method, p.prefix) {
			subject = p.subject
			rest = method[len(p.prefix):]
			break
		}
	}
	if subject == "" {
		return nil, types.NewValidationError("method", "%q has no find/count/exists/delete prefix", method)
	}
	idx := strings.Index(rest, "By")
	if idx < 0 {
		if rest == "" || rest == "All" {
			return &Derived{Subject: subject, Where: All()}, nil
		}
		return nil, types.NewValidationError("method", "%q has no By clause", method)
	}
	words := splitCamel(rest[idx+2:])
	if len(words) == 0 {
		return nil, types.NewValidationError("method", "%q has an empty By clause", method)
	}

	var groups [][]string
	var current []string
	var ors [][][]string
	for _, w := range words {
		switch w {
		case "And":
			groups = append(groups, current)
			current = nil
		case "Or":
			groups = append(groups, current)
			ors = append(ors, groups)
			groups, current = nil, nil
		default:
			current = append(current, w)
		}
	}
	groups = append(groups, current)
	ors = append(ors, groups)

	next := 0
	alternatives := make([]Predicate, 0, len(ors))
	for _, group := range ors {
		conds := make([]Predicate, 0, len(group))
		for _, part := range group {
			if len(part) == 0 {
				return nil, types.NewValidationError("method", "%q has a dangling And/Or", method)
			}
			cond, used, err := deriveCondition(part, args[min(next, len(args)):])
			if err != nil {
				return nil, err
			}
			next += used
			conds = append(conds, cond)
		}
		alternatives = append(alternatives, And(conds...))
	}
	if next != len(args) {
		return nil, types.NewValidationError("method", "%q binds %d arguments, got %d", method, next, len(args))
	}
	return &Derived{Subject: subject, Where: Or(alternatives...)}, nil
}

func deriveCondition(words []string, args []interface{}) (Predicate, int, error) {
	op := OpEq
	property := words
	for _, s := range suffixes {
		n := len(s.words)
		if len(words) <= n {
			continue
		}
		if equalWords(words[len(words)-n:], s.words) {
			op = s.op
			property = words[:len(words)-n]
			break
		}
	}
	field := snake(property)
	if op == OpIsNull || op == OpNotNull {
		return &Condition{Field: field, Op: op}, 0, nil
	}
	if len(args) == 0 {
		return nil, 0, types.NewValidationError(field, "missing argument")
	}
	return &Condition{Field: field, Op: op, Value: args[0]}, 1, nil
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, string(runes[start:]))
	}
	return words
}

func snake(words []string) string {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	return strings.Join(lower, "_")
}
