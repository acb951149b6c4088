package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPseudoEmbedderDeterministic(t *testing.T) {
	e := NewPseudoEmbedder(DefaultDimensions)
	ctx := context.Background()

	a, err := e.Embed(ctx, "func computeTotal(items []Item) int")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "func computeTotal(items []Item) int")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(ctx, "completely different text entirely")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestPseudoEmbedderEmptyText(t *testing.T) {
	e := NewPseudoEmbedder(DefaultDimensions)
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestPseudoEmbedderClosed(t *testing.T) {
	e := NewPseudoEmbedder(DefaultDimensions)
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestPseudoEmbedderBatch(t *testing.T) {
	e := NewPseudoEmbedder(DefaultDimensions)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}
