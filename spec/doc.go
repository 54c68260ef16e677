// Package spec builds composable filter predicates over one entity's columns and
// one-hop joins, and compiles them into a single bun WHERE fragment.
package spec
