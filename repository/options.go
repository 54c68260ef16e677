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

package repository

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tomoncle/datajpa/audit"
	"github.com/tomoncle/datajpa/database"
)

// DefaultLockTimeout bounds FindLocked waits when no timeout is configured.
const DefaultLockTimeout = 3 * time.Second

type options struct {
	relations   []string
	auditor     audit.Provider
	clock       clockwork.Clock
	lockTimeout time.Duration
	logger      database.Logger
}

// Option configures a repository.
type Option func(*options)

// WithRelations loads the named bun relations, e.g. "Team", with every
// entity query.
func WithRelations(names ...string) Option {
	return func(o *options) { o.relations = append(o.relations, names...) }
}

// WithAuditor replaces audit.Default.
func WithAuditor(p audit.Provider) Option {
	return func(o *options) { o.auditor = p }
}

// WithClock sets the clock used for audit timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLockTimeout sets how long FindLocked waits for a row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

func WithLogger(l database.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) *options {
	o := &options{
		auditor:     audit.Default(),
		clock:       clockwork.NewRealClock(),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	if o.lockTimeout <= 0 {
		o.lockTimeout = DefaultLockTimeout
	}
	return o
}
