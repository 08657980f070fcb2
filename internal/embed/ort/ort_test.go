package ort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 0,
		3, 0,
		100, 100, // masked
	}

	vec := meanPool(hidden, []int{1, 1, 0}, 2)
	require.Len(t, vec, 2)
	assert.InDelta(t, 1.0, vec[0], 1e-6)
	assert.InDelta(t, 0.0, vec[1], 1e-6)
}

func TestMeanPoolAllMasked(t *testing.T) {
	vec := meanPool([]float32{1, 2}, []int{0}, 2)
	assert.Equal(t, []float32{0, 0}, vec)
}

func TestPadTo(t *testing.T) {
	assert.Equal(t, []int{1, 0, 0}, padTo([]int{1}, 3))
	assert.Equal(t, []int{1, 2}, padTo([]int{1, 2, 3}, 2))
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, 128, cfg.MaxSeqLen)
	assert.Equal(t, 384, cfg.HiddenSize)
}
