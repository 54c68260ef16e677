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

import "github.com/tomoncle/datajpa/spec"

// TeamName filters members by the name of their team; a blank name matches all.
func TeamName(name string) spec.Predicate {
	return spec.EqIfPresent("team.name", name)
}

// Username filters members by exact username.
func Username(username string) spec.Predicate {
	return spec.Eq("username", username)
}
