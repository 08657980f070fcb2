// Package canonical defines the closed vocabulary of semantic column roles
// that every downstream analytic consumes, together with the static synonym
// and description tables used to resolve raw headers onto that vocabulary.
//
// Key capabilities:
//   - Type: a single canonical role (Date, Sales, Amount, ...)
//   - Vocabulary: ordered list of every legal role, Ignore included
//   - Table: synonym and description lookup, optionally extended from YAML
package canonical
