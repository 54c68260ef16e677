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
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tomoncle/datajpa/types"
)

type termKind int

const (
	termPath termKind = iota
	termString
	termInt
)

type term struct {
	kind  termKind
	text  string
	value int64
}

// Expr is a parsed computed-field expression.
type Expr struct {
	src   string
	terms []term
}

// ParseExpr parses src according to the expression grammar.
func ParseExpr(src string) (*Expr, error) {
	p := &parser{src: []rune(src)}
	e := &Expr{src: src}
	for {
		p.skipSpace()
		t, err := p.term()
		if err != nil {
			return nil, types.NewValidationError("expression", "%s in %q", err, src)
		}
		e.terms = append(e.terms, t)
		p.skipSpace()
		if p.eof() {
			return e, nil
		}
		if p.peek() != '+' {
			return nil, types.NewValidationError("expression", "expected '+' at offset %d in %q", p.pos, src)
		}
		p.pos++
	}
}

// Paths lists the source paths the expression reads.
func (e *Expr) Paths() []string {
	var paths []string
	for _, t := range e.terms {
		if t.kind == termPath {
			paths = append(paths, t.text)
		}
	}
	return paths
}

// Eval concatenates the terms, reading paths through lookup.
func (e *Expr) Eval(lookup func(path string) interface{}) string {
	var sb strings.Builder
	for _, t := range e.terms {
		switch t.kind {
		case termString:
			sb.WriteString(t.text)
		case termInt:
			sb.WriteString(strconv.FormatInt(t.value, 10))
		default:
			sb.WriteString(stringify(lookup(t.text)))
		}
	}
	return sb.String()
}

func (e *Expr) String() string { return e.src }

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune { return p.src[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) term() (term, error) {
	if p.eof() {
		return term{}, fmt.Errorf("missing term at offset %d", p.pos)
	}
	switch c := p.peek(); {
	case c == '\'':
		return p.quoted()
	case unicode.IsDigit(c):
		start := p.pos
		for !p.eof() && unicode.IsDigit(p.peek()) {
			p.pos++
		}
		n, err := strconv.ParseInt(string(p.src[start:p.pos]), 10, 64)
		if err != nil {
			return term{}, err
		}
		return term{kind: termInt, value: n}, nil
	case isIdentStart(c):
		path, err := p.path()
		if err != nil {
			return term{}, err
		}
		return term{kind: termPath, text: path}, nil
	default:
		return term{}, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
	}
}

func (p *parser) quoted() (term, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		if c != '\'' {
			sb.WriteRune(c)
			continue
		}
		if !p.eof() && p.peek() == '\'' {
			sb.WriteRune('\'')
			p.pos++
			continue
		}
		return term{kind: termString, text: sb.String()}, nil
	}
	return term{}, fmt.Errorf("unterminated string at offset %d", start)
}

func (p *parser) path() (string, error) {
	var parts []string
	for {
		start := p.pos
		for !p.eof() && isIdentPart(p.peek()) {
			p.pos++
		}
		if start == p.pos {
			return "", fmt.Errorf("empty identifier at offset %d", p.pos)
		}
		parts = append(parts, string(p.src[start:p.pos]))
		if p.eof() || p.peek() != '.' {
			break
		}
		p.pos++
	}
	if parts[0] == "target" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("bare target at offset %d", p.pos)
	}
	return strings.Join(parts, "."), nil
}

func isIdentStart(c rune) bool { return c == '_' || unicode.IsLetter(c) }

func isIdentPart(c rune) bool { return isIdentStart(c) || unicode.IsDigit(c) }

// ValidPath reports whether path is ident ('.' ident)*.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return false
		}
		for i, c := range part {
			if i == 0 && !isIdentStart(c) || !isIdentPart(c) {
				return false
			}
		}
	}
	return true
}
