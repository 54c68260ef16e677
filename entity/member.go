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
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull"`
	Age      int    `bun:"age,notnull"`
	TeamID   *int64 `bun:"team_id"`
	Team     *Team  `bun:"rel:belongs-to,join:team_id=id,on_delete:SET NULL"`
	BaseEntity
}

var (
	_ Persistable[int64] = (*Member)(nil)
	_ Joiner             = (*Member)(nil)

	_ bun.BeforeAppendModelHook = (*Member)(nil)
)

// NewMember returns an unsaved member, placed in team when team is not nil.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	if team != nil {
		m.ChangeTeam(team)
	}
	return m
}

func (m *Member) GetID() int64 { return m.ID }

func (m *Member) IsNew() bool { return m.ID == 0 }

// ChangeTeam moves the member into team and records it in team.Members.
// An unsaved team gets its key copied on the member's next save.
func (m *Member) ChangeTeam(team *Team) {
	m.Team = team
	m.TeamID = nil
	if team.ID != 0 {
		id := team.ID
		m.TeamID = &id
	}
	team.Members = append(team.Members, m)
}

// BeforeAppendModel copies the identity of a team saved after ChangeTeam.
func (m *Member) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if m.Team != nil && m.Team.ID != 0 {
		id := m.Team.ID
		m.TeamID = &id
	}
	return nil
}

func (m *Member) JoinColumns() map[string]JoinColumn {
	return map[string]JoinColumn{
		"team": {ForeignKey: "team_id", Target: (*Team)(nil), Key: "id"},
	}
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}
