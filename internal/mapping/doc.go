// Package mapping provides the shared vocabulary of the resolution pipeline:
// mapping sources with their trust weights, and scored candidates.
//
// # Sources and trust
//
// Every proposal is tagged with the source that produced it. Each source
// carries a fixed trust weight and the effective score of a proposal is its
// raw confidence multiplied by that weight:
//
//	user_confirmed  1.00
//	knowledge_base  0.98
//	language_model  0.90
//	local_rule      0.85
//	local_fallback  0.85 (confidence already discounted)
//
// # Priority Order
//
// When effective scores tie, the proposal from the higher-priority source wins:
//  1. user_confirmed (highest)
//  2. knowledge_base
//  3. language_model
//  4. local_rule
//  5. local_fallback (lowest)
//
// All confidences are on the 0-1 scale. Values received on a 0-100 scale
// (configuration thresholds, language model answers) are converted at the
// boundary.
package mapping
