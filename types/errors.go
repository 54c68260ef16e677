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

package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrNotFound indicates that an operation referenced an identity with no row.
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout indicates that a write-intent lock was not granted in time.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrConstraintViolation indicates a uniqueness, not-null, check or foreign key violation.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrValidation indicates a malformed predicate, projection or request.
	ErrValidation = errors.New("validation failed")

	// ErrTransactionRequired indicates an operation that needs an active unit of work.
	ErrTransactionRequired = errors.New("transaction required")

	// ErrNonUniqueResult indicates a single-result query that matched several rows.
	ErrNonUniqueResult = errors.New("non unique result")
)

// NotFoundError provides details about a missing row.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// LockTimeoutError is returned when a pessimistic lock wait exceeds Timeout.
type LockTimeoutError struct {
	Entity  string
	Timeout time.Duration
	Cause   error
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("%s lock not granted within %s: %v", e.Entity, e.Timeout, e.Cause)
}

// Is lets errors.Is match both ErrLockTimeout and the driver cause.
func (e *LockTimeoutError) Is(target error) bool { return target == ErrLockTimeout }

func (e *LockTimeoutError) Unwrap() error { return e.Cause }

// ConstraintViolationError wraps a store-level constraint failure raised on save.
type ConstraintViolationError struct {
	Entity string
	Kind   string
	Cause  error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s %s violation: %v", e.Entity, e.Kind, e.Cause)
}

func (e *ConstraintViolationError) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ConstraintViolationError) Unwrap() error { return e.Cause }

// ValidationError represents a malformed input for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for a formatted ValidationError.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
