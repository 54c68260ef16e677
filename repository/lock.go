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
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomoncle/datajpa/spec"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun/dialect"
)

// FindLocked selects the matching rows holding a write lock on them until the
// unit of work in ctx ends. Relations are not loaded: postgres refuses FOR
// UPDATE on the nullable side of an outer join. SQLite has no row locks; its
// units of work already hold the database write lock.
func (r *baseRepositoryImpl[T, K]) FindLocked(ctx context.Context, where spec.Predicate) ([]*T, error) {
	u := unitOfWorkFrom(ctx)
	if u == nil {
		return nil, fmt.Errorf("find locked %s: %w", r.name, types.ErrTransactionRequired)
	}
	filter, err := r.compile(where, spec.Qualified)
	if err != nil {
		return nil, err
	}
	orders, err := r.resolver.orderBy(nil)
	if err != nil {
		return nil, err
	}

	timeout := r.opts.lockTimeout
	if err := r.setLockTimeout(ctx, u, timeout); err != nil {
		return nil, translate(r.name, "lock timeout", timeout, err)
	}

	entities := make([]*T, 0)
	q := applyOrder(applyFilter(u.tx.NewSelect().Model(&entities), filter), orders)

	start := time.Now()
	if r.db.Dialect().Name() != dialect.SQLite {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, r.lockFailed(where, timeout, start, err)
	}

	// Locked rows are authoritative: replace whatever the unit of work cached.
	for _, e := range entities {
		u.put(r.typ, r.persistable(e).GetID(), e)
	}
	r.opts.logger.Debug("Rows locked", "entity", r.name, "where", where, "rows", len(entities), "waited", time.Since(start))
	return entities, nil
}

func (r *baseRepositoryImpl[T, K]) lockFailed(where spec.Predicate, timeout time.Duration, start time.Time, err error) error {
	err = translate(r.name, "find locked", timeout, err)
	if errors.Is(err, types.ErrLockTimeout) {
		r.opts.logger.Warn("Lock not granted", "entity", r.name, "where", where, "timeout", timeout, "waited", time.Since(start))
	}
	return err
}

// lockTimeoutStmt returns the statement bounding lock waits and whether it
// outlives the transaction. SET does not take bind parameters so the value is
// formatted in.
func lockTimeoutStmt(name dialect.Name, timeout time.Duration) (stmt string, session bool) {
	switch name {
	case dialect.PG:
		return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds()), false
	case dialect.MySQL:
		// Whole seconds only.
		secs := int(math.Ceil(timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs), true
	}
	return "", false
}

// setLockTimeout bounds lock waits for the rest of the unit of work. A session
// setting is put back when the unit ends so the pooled connection keeps its
// previous value.
func (r *baseRepositoryImpl[T, K]) setLockTimeout(ctx context.Context, u *unitOfWork, timeout time.Duration) error {
	stmt, session := lockTimeoutStmt(r.db.Dialect().Name(), timeout)
	if stmt == "" {
		return nil
	}
	if session && !u.remember("innodb_lock_wait_timeout") {
		var previous int
		if err := u.tx.QueryRowContext(ctx, "SELECT @@SESSION.innodb_lock_wait_timeout").Scan(&previous); err != nil {
			return err
		}
		u.onFinish(func(ctx context.Context) error {
			_, err := u.tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", previous))
			return err
		})
	}
	_, err := u.tx.ExecContext(ctx, stmt)
	return err
}
