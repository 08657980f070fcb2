// Package diagnostic provides structured warnings and explanations
// attached to a mapping report.
//
// Key capabilities:
//   - Headers left without candidates (mapped to Ignore)
//   - Strategy and escalation failures that were absorbed
//   - Collision aliases and verification reassignments
//   - Ambiguous headers with their top candidates
package diagnostic
