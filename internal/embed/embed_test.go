package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/canonical"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	a, err := e.EmbedText(context.Background(), "sales revenue")
	require.NoError(t, err)
	b, err := e.EmbedText(context.Background(), "sales revenue")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultHashDim)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestHashEmbedderEmptyText(t *testing.T) {
	vec, err := NewHashEmbedder(64).EmbedText(context.Background(), "")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, Cosine(vec, vec), 1e-9)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine(nil, nil), 1e-9)
}

func TestIndexNearest(t *testing.T) {
	ctx := context.Background()
	idx, err := BuildIndex(ctx, NewHashEmbedder(0), canonical.Default())
	require.NoError(t, err)

	matches, err := idx.Nearest(ctx, "units sold", 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, canonical.Quantity, matches[0].Type)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
}

func TestIndexNearestBelowThreshold(t *testing.T) {
	ctx := context.Background()
	idx, err := BuildIndex(ctx, NewHashEmbedder(0), canonical.Default())
	require.NoError(t, err)

	matches, err := idx.Nearest(ctx, "zzqx", 0.7)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, errors.New("runtime unavailable")
}

func (failingEmbedder) ModelID() string { return "failing" }

func TestBuildIndexPropagatesErrors(t *testing.T) {
	_, err := BuildIndex(context.Background(), failingEmbedder{}, canonical.Default())
	require.Error(t, err)
}
