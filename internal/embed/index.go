package embed

import (
	"context"
	"fmt"
	"sort"

	"schemamap/internal/canonical"
)

// Index holds precomputed embeddings for every canonical type: one vector for
// the description and one per synonym. Index is read-only after construction.
type Index struct {
	embedder Embedder
	vectors  map[canonical.Type][][]float32
}

// Match is a canonical type with its best cosine similarity.
type Match struct {
	Type       canonical.Type
	Similarity float64
}

// BuildIndex embeds the description and synonyms of every type in the table.
func BuildIndex(ctx context.Context, e Embedder, table *canonical.Table) (*Index, error) {
	idx := &Index{
		embedder: e,
		vectors:  make(map[canonical.Type][][]float32),
	}

	for _, entry := range table.Entries() {
		texts := append([]string{entry.Description}, entry.Synonyms...)
		for _, text := range texts {
			vec, err := e.EmbedText(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embed %s description: %w", entry.Type, err)
			}

			idx.vectors[entry.Type] = append(idx.vectors[entry.Type], vec)
		}
	}

	return idx, nil
}

// Nearest embeds text and returns every type whose best similarity is at
// least minSimilarity, sorted by similarity descending then vocabulary order.
func (idx *Index) Nearest(ctx context.Context, text string, minSimilarity float64) ([]Match, error) {
	vec, err := idx.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed header: %w", err)
	}

	var out []Match

	for _, typ := range canonical.Vocabulary() {
		vecs, ok := idx.vectors[typ]
		if !ok {
			continue
		}

		best := 0.0
		for _, v := range vecs {
			if sim := Cosine(vec, v); sim > best {
				best = sim
			}
		}

		if best >= minSimilarity {
			out = append(out, Match{Type: typ, Similarity: best})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})

	return out, nil
}
