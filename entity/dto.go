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

import "github.com/tomoncle/datajpa/projection"

// MemberDto is the flat id, username and team name triple.
type MemberDto struct {
	ID       int64  `bun:"id" json:"id"`
	Username string `bun:"username" json:"username"`
	TeamName string `bun:"team_name" json:"team_name"`
}

// UsernameOnlyDto is the closed username projection scanned into a struct.
type UsernameOnlyDto struct {
	Username string `bun:"username" json:"username"`
}

var (
	// UsernameOnly is an open projection computed after the row is fetched.
	UsernameOnly = projection.NewView("UsernameOnly").
			Computed("username", "target.username + ' ' + target.age + ' ' + target.team.name").
			MustBuild()

	// UsernameOnlyView selects the username column alone.
	UsernameOnlyView = projection.NewView("UsernameOnlyDto").
				Field("username").
				MustBuild()

	// NestedClosedProjection nests the team name under "team".
	NestedClosedProjection = projection.NewView("NestedClosedProjection").
				Field("username").
				Field("team.name").
				MustBuild()

	// MemberDtoView feeds MemberDto through a left join on teams.
	MemberDtoView = projection.NewView("MemberDto").
			FieldAs("id", "id").
			FieldAs("username", "username").
			FieldAs("team_name", "team.name").
			MustBuild()
)
