package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorScorerIndexAndScoreReturnsNearestFirst(t *testing.T) {
	v := NewVectorScorer(3)

	require.NoError(t, v.Index("a.txt", []float32{1, 0, 0}))
	require.NoError(t, v.Index("b.txt", []float32{0, 1, 0}))
	require.NoError(t, v.Index("c.txt", []float32{0.9, 0.1, 0}))

	hits, err := v.Score([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.txt", hits[0].Path)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestVectorScorerRejectsDimensionMismatch(t *testing.T) {
	v := NewVectorScorer(3)

	err := v.Index("a.txt", []float32{1, 0})
	assert.Error(t, err)

	_, err = v.Score([]float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
}

func TestVectorScorerReindexReplacesVector(t *testing.T) {
	v := NewVectorScorer(2)

	require.NoError(t, v.Index("a.txt", []float32{1, 0}))
	require.NoError(t, v.Index("a.txt", []float32{0, 1}))

	hits, err := v.Score([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", hits[0].Path)
}

func TestVectorScorerEmptyGraphReturnsNoHits(t *testing.T) {
	v := NewVectorScorer(2)

	hits, err := v.Score([]float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
