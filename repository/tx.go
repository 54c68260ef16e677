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
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/tomoncle/datajpa/audit"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type unitOfWorkKey struct{}

// unitOfWork is the state shared by every repository call inside one
// transaction.
type unitOfWork struct {
	tx bun.Tx

	mu    sync.Mutex
	cache map[reflect.Type]map[interface{}]interface{}

	actorOnce sync.Once
	actor     string

	// finish runs in order before the transaction commits or rolls back.
	finish []func(ctx context.Context) error
	marks  map[string]bool
}

func newUnitOfWork(tx bun.Tx) *unitOfWork {
	return &unitOfWork{tx: tx, cache: make(map[reflect.Type]map[interface{}]interface{})}
}

func unitOfWorkFrom(ctx context.Context) *unitOfWork {
	u, _ := ctx.Value(unitOfWorkKey{}).(*unitOfWork)
	return u
}

// InTx reports whether ctx carries an active unit of work.
func InTx(ctx context.Context) bool { return unitOfWorkFrom(ctx) != nil }

// RunInTx runs fn in a unit of work. It commits when fn returns nil and rolls
// back otherwise. A nested call joins the enclosing unit of work.
//
// SQLite units of work begin IMMEDIATE: they hold the database write lock
// from the start and wait up to DefaultLockTimeout for it.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	return RunInTxTimeout(ctx, db, DefaultLockTimeout, fn)
}

// RunInTxTimeout is RunInTx with the sqlite write lock wait bounded by
// timeout. A wait that runs out is a LockTimeoutError.
func RunInTxTimeout(ctx context.Context, db *bun.DB, timeout time.Duration, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	if db.Dialect().Name() != dialect.SQLite {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return runUnit(ctx, tx, fn)
		})
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("unit of work: %w", err)
	}
	defer conn.Close()
	// The busy timeout is per connection, so the unit pins one.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds())); err != nil {
		return fmt.Errorf("unit of work: %w", err)
	}
	began := false
	err = conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		began = true
		return runUnit(ctx, tx, fn)
	})
	if err != nil && !began {
		return translate("database", "begin", timeout, err)
	}
	return err
}

func runUnit(ctx context.Context, tx bun.Tx, fn func(ctx context.Context) error) error {
	u := newUnitOfWork(tx)
	ctx = context.WithValue(ctx, unitOfWorkKey{}, u)
	err := fn(ctx)
	for _, f := range u.finish {
		if ferr := f(ctx); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// onFinish registers f to run when the unit of work ends, before commit or
// rollback.
func (u *unitOfWork) onFinish(f func(ctx context.Context) error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.finish = append(u.finish, f)
}

// auditor resolves the actor once and reuses it for the rest of the unit of work.
func (u *unitOfWork) auditor(ctx context.Context, p audit.Provider) string {
	u.actorOnce.Do(func() {
		u.actor = audit.Resolve(ctx, p, time.Time{}).By
	})
	return u.actor
}

// remember marks key and reports whether it was already marked.
func (u *unitOfWork) remember(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.marks == nil {
		u.marks = map[string]bool{}
	}
	seen := u.marks[key]
	u.marks[key] = true
	return seen
}

func (u *unitOfWork) get(typ reflect.Type, id interface{}) (interface{}, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.cache[typ][id]
	return v, ok
}

func (u *unitOfWork) put(typ reflect.Type, id interface{}, v interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	byID, ok := u.cache[typ]
	if !ok {
		byID = make(map[interface{}]interface{})
		u.cache[typ] = byID
	}
	byID[id] = v
}

// merge returns the cached instance for id, registering v when there is none.
func (u *unitOfWork) merge(typ reflect.Type, id interface{}, v interface{}) interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	byID, ok := u.cache[typ]
	if !ok {
		byID = make(map[interface{}]interface{})
		u.cache[typ] = byID
	}
	if cached, hit := byID[id]; hit {
		return cached
	}
	byID[id] = v
	return v
}

func (u *unitOfWork) evict(typ reflect.Type, id interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.cache[typ], id)
}

// clear drops every cached instance of typ.
func (u *unitOfWork) clear(typ reflect.Type) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.cache, typ)
}

func (u *unitOfWork) size(typ reflect.Type) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.cache[typ])
}
