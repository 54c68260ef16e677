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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/types"
)

var (
	ErrNotFound            = types.ErrNotFound
	ErrLockTimeout         = types.ErrLockTimeout
	ErrConstraintViolation = types.ErrConstraintViolation
	ErrValidation          = types.ErrValidation
	ErrTransactionRequired = types.ErrTransactionRequired
	ErrNonUniqueResult     = types.ErrNonUniqueResult
)

type (
	NotFoundError            = types.NotFoundError
	LockTimeoutError         = types.LockTimeoutError
	ConstraintViolationError = types.ConstraintViolationError
	ValidationError          = types.ValidationError
)

var constraintKinds = map[database.SQLError]string{
	database.DuplicateKeyErr:             "unique",
	database.NotNullViolationErr:         "not null",
	database.ForeignKeyViolationErr:      "foreign key",
	database.CheckConstraintViolationErr: "check",
	database.DataTruncatedErr:            "length",
}

// translate maps store failures onto the error taxonomy.
func translate(entityName, op string, timeout time.Duration, err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var validation *types.ValidationError
	if errors.As(err, &validation) || errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrTransactionRequired) {
		return err
	}
	if ok, kind := database.IsSqlError(err); ok {
		if kind == database.LockTimeoutErr {
			return &types.LockTimeoutError{Entity: entityName, Timeout: timeout, Cause: err}
		}
		if name, violated := constraintKinds[kind]; violated {
			return &types.ConstraintViolationError{Entity: entityName, Kind: name, Cause: err}
		}
	}
	return fmt.Errorf("%s %s: %w", op, entityName, err)
}
