// Package merge picks exactly one canonical type per header.
//
// Every proposal for a header (user confirmation, knowledge base, language
// model, local rules) is scored as raw confidence times its source weight.
// The best proposal per header is provisional; ties break by source priority
// user_confirmed > knowledge_base > language_model > local_rule.
//
// Headers whose provisional types collide are ordered by score. The first
// keeps the bare canonical name, the others become Type_1, Type_2, ... so no
// column is dropped, but only the bare name counts as the canonical column.
//
// Verification then checks that every required type (or one member of an
// OR-group) holds a bare name. A missing type is filled from an aliased or
// ignored header that proposed it, repeating until nothing changes; anything
// still missing is reported as a partial result, never an error.
package merge
