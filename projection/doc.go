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

// Package projection describes reduced views of an entity.
//
// A view lists the source paths it needs, so the repository can select
// exactly those columns, and shapes each fetched row into its output form.
// Closed fields copy a column, optionally nesting the output under a dotted
// name such as "team.name". Computed fields concatenate paths and literals:
//
//	expr := term ('+' term)*
//	term := path | 'string' | integer
//	path := ident ('.' ident)*
//
// A leading "target." on a path is accepted and ignored.
package projection
