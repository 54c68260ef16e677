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

package projection

import (
	"strings"

	"github.com/tomoncle/datajpa/types"
)

// Field is one output entry of a View.
type Field struct {
	Name string // output key; a dotted name nests the value
	Path string // source path of a closed field
	Expr *Expr  // set for computed fields
}

// Computed reports whether the field is evaluated from an expression.
func (f Field) Computed() bool { return f.Expr != nil }

// View is an immutable projection definition.
type View struct {
	name   string
	fields []Field
	paths  []string
}

func (v *View) Name() string { return v.name }

func (v *View) Fields() []Field { return append([]Field(nil), v.fields...) }

// Paths lists every source path the view reads, in first-use order.
func (v *View) Paths() []string { return append([]string(nil), v.paths...) }

// IsClosed reports whether the view has no computed fields.
func (v *View) IsClosed() bool {
	for _, f := range v.fields {
		if f.Computed() {
			return false
		}
	}
	return true
}

// IsFlat reports whether no output name is nested.
func (v *View) IsFlat() bool {
	for _, f := range v.fields {
		if strings.Contains(f.Name, ".") {
			return false
		}
	}
	return true
}

// Alias is the column alias under which path is selected.
func Alias(path string) string { return strings.ReplaceAll(path, ".", "__") }

// Shape converts a row keyed by Alias(path) into the view's output.
func (v *View) Shape(row map[string]interface{}) types.JsonObject {
	lookup := func(path string) interface{} {
		return normalize(row[Alias(path)])
	}
	out := types.JsonObject{}
	for _, f := range v.fields {
		if f.Computed() {
			out.Set(f.Name, f.Expr.Eval(lookup))
			continue
		}
		out.Set(f.Name, lookup(f.Path))
	}
	return out
}

// ShapeAll applies Shape to every row.
func (v *View) ShapeAll(rows []map[string]interface{}) types.JsonArray {
	out := make(types.JsonArray, 0, len(rows))
	for _, row := range rows {
		out = append(out, v.Shape(row))
	}
	return out
}

func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Builder assembles a View. The first error sticks and is reported by Build.
type Builder struct {
	view  *View
	names map[string]struct{}
	seen  map[string]struct{}
	err   error
}

// NewView starts a view definition.
func NewView(name string) *Builder {
	return &Builder{
		view:  &View{name: name},
		names: map[string]struct{}{},
		seen:  map[string]struct{}{},
	}
}

// Field adds a closed field whose output name is its path.
func (b *Builder) Field(path string) *Builder { return b.FieldAs(path, path) }

// FieldAs adds a closed field reading path into name.
func (b *Builder) FieldAs(name, path string) *Builder {
	if b.err != nil {
		return b
	}
	path = strings.TrimPrefix(path, "target.")
	if !ValidPath(path) {
		b.err = types.NewValidationError(name, "invalid path %q", path)
		return b
	}
	b.add(Field{Name: name, Path: path}, path)
	return b
}

// Computed adds an open field evaluated from expr.
func (b *Builder) Computed(name, expr string) *Builder {
	if b.err != nil {
		return b
	}
	e, err := ParseExpr(expr)
	if err != nil {
		b.err = err
		return b
	}
	b.add(Field{Name: name, Expr: e}, e.Paths()...)
	return b
}

func (b *Builder) add(f Field, paths ...string) {
	if !ValidPath(f.Name) {
		b.err = types.NewValidationError(f.Name, "invalid output name")
		return
	}
	if _, dup := b.names[f.Name]; dup {
		b.err = types.NewValidationError(f.Name, "duplicate output name")
		return
	}
	b.names[f.Name] = struct{}{}
	b.view.fields = append(b.view.fields, f)
	for _, p := range paths {
		if _, ok := b.seen[p]; ok {
			continue
		}
		b.seen[p] = struct{}{}
		b.view.paths = append(b.view.paths, p)
	}
}

// Build returns the view or the first definition error.
func (b *Builder) Build() (*View, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.view.fields) == 0 {
		return nil, types.NewValidationError(b.view.name, "view has no fields")
	}
	return b.view, nil
}

// MustBuild is Build for package-level view definitions.
func (b *Builder) MustBuild() *View {
	v, err := b.Build()
	if err != nil {
		panic(err)
	}
	return v
}
