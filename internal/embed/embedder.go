// Package embed provides text embedders and a precomputed index of canonical
// type descriptions used for semantic header matching.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder exposes the minimal surface required by the semantic strategy.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// HashEmbedder is a deterministic feature-hashing embedder over character
// trigrams and whole words. It needs no model files, so it is the default
// when no ONNX model is configured.
type HashEmbedder struct {
	dim int
}

// DefaultHashDim is the vector width of the default hash embedder.
const DefaultHashDim = 512

// NewHashEmbedder returns a HashEmbedder producing dim-wide vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}

	return &HashEmbedder{dim: dim}
}

// ModelID returns the identifier used for cache keys.
func (h *HashEmbedder) ModelID() string {
	return "hash-trigram"
}

// EmbedText embeds already-normalized text. The result is L2-normalized.
func (h *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)

	for _, word := range strings.Fields(text) {
		h.add(vec, "w:"+word, 1.0)

		padded := []rune(" " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "t:"+string(padded[i:i+3]), 0.5)
		}
	}

	normalize(vec)

	return vec, nil
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New32a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum32()

	// the top bit picks the sign so collisions cancel rather than pile up
	if sum&0x80000000 != 0 {
		weight = -weight
	}

	vec[int(sum%uint32(h.dim))] += weight
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
