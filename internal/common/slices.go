// Package common holds small generic helpers shared across the pipeline packages.
package common

import (
	"cmp"
	"slices"
)

// UnknownStr is the string form of an enum value outside its defined range.
const UnknownStr = "unknown"

// Chunk splits s into consecutive chunks of at most size elements.
// A non-positive size yields a single chunk.
func Chunk[S ~[]E, E any](s S, size int) []S {
	if len(s) == 0 {
		return nil
	}

	if size <= 0 || size >= len(s) {
		return []S{s}
	}

	out := make([]S, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		out = append(out, s[start:end])
	}

	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
