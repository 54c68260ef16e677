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

import "github.com/uptrace/bun"

type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
	// Members is populated by relation loading only and never written.
	Members []*Member `bun:"rel:has-many,join:id=team_id"`
}

var _ Persistable[int64] = (*Team)(nil)

func NewTeam(name string) *Team { return &Team{Name: name} }

func (t *Team) GetID() int64 { return t.ID }

func (t *Team) IsNew() bool { return t.ID == 0 }
