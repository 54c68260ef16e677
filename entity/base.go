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

package entity

import (
	"time"

	"github.com/tomoncle/datajpa/audit"
)

// Persistable is implemented by every model handled by a repository.
type Persistable[K comparable] interface {
	GetID() K
	// IsNew reports whether the entity has not been stored yet.
	IsNew() bool
}

// Auditable models receive lifecycle callbacks from the repository save path.
type Auditable interface {
	PrePersist(s audit.Stamp)
	PreUpdate(s audit.Stamp)
	// ImmutableColumns are never written by an update.
	ImmutableColumns() []string
	// ModificationValues are the columns refreshed by a bulk update.
	ModificationValues(s audit.Stamp) map[string]interface{}
}

// JoinColumn declares a many-to-one hop usable in predicates and projections.
type JoinColumn struct {
	ForeignKey string
	Target     interface{} // typed nil pointer to the joined model
	Key        string
}

// Joiner exposes the join paths of a model, keyed by path segment.
type Joiner interface {
	JoinColumns() map[string]JoinColumn
}

// BaseTimeEntity carries creation and modification timestamps.
type BaseTimeEntity struct {
	CreatedAt      time.Time `bun:"created_at,notnull"`
	LastModifiedAt time.Time `bun:"last_modified_at,notnull"`
}

var _ Auditable = (*BaseTimeEntity)(nil)

func (e *BaseTimeEntity) PrePersist(s audit.Stamp) {
	e.CreatedAt = s.At
	e.LastModifiedAt = s.At
}

func (e *BaseTimeEntity) PreUpdate(s audit.Stamp) {
	e.LastModifiedAt = s.At
}

func (e *BaseTimeEntity) ImmutableColumns() []string { return []string{"created_at"} }

func (e *BaseTimeEntity) ModificationValues(s audit.Stamp) map[string]interface{} {
	return map[string]interface{}{"last_modified_at": s.At}
}

// BaseEntity adds the creating and modifying actor to BaseTimeEntity.
type BaseEntity struct {
	BaseTimeEntity
	CreatedBy      string `bun:"created_by"`
	LastModifiedBy string `bun:"last_modified_by"`
}

var _ Auditable = (*BaseEntity)(nil)

func (e *BaseEntity) PrePersist(s audit.Stamp) {
	e.BaseTimeEntity.PrePersist(s)
	e.CreatedBy = s.By
	e.LastModifiedBy = s.By
}

func (e *BaseEntity) PreUpdate(s audit.Stamp) {
	e.BaseTimeEntity.PreUpdate(s)
	e.LastModifiedBy = s.By
}

func (e *BaseEntity) ImmutableColumns() []string { return []string{"created_at", "created_by"} }

func (e *BaseEntity) ModificationValues(s audit.Stamp) map[string]interface{} {
	return map[string]interface{}{"last_modified_at": s.At, "last_modified_by": s.By}
}
