// Package pipeline runs one schema resolution per uploaded table.
//
// A run proceeds in a fixed order:
//  1. the header normalizer proposes local candidates for every header
//  2. user confirmations and knowledge base hits are added as proposals
//  3. headers still below the escalation threshold go to the language
//     model, or to the keyword fallback mapper when escalation is disabled
//  4. the merger picks one type per header, aliases collisions and verifies
//     required types
//  5. the rename is applied and readiness is evaluated on the renamed table
//  6. confident mappings are written back to the knowledge base
//
// Nothing in a run is fatal except cancellation of the context, which
// stops the run before the rename is applied.
package pipeline
