package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slmchat/internal/domain"
	"slmchat/internal/embedding/tfidf"
	"slmchat/internal/vectorstore/memory"
)

func build(t *testing.T, texts ...string) *Index {
	t.Helper()
	chunks := make([]domain.Chunk, len(texts))
	for i, s := range texts {
		chunks[i] = domain.Chunk{ChunkID: s, Text: s, Index: i}
	}
	e := tfidf.NewEmbedder()
	require.NoError(t, e.Prepare(texts))
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	store := memory.NewStorage()
	require.NoError(t, store.Init(e.Dimension()))
	require.NoError(t, store.Upsert(chunks, vecs))

	ix, err := New("notes.txt", store, e, chunks, "preview")
	require.NoError(t, err)
	return ix
}

func TestRetrieveNearest(t *testing.T) {
	ix := build(t, "The sky is blue.", "Grass grows green in spring.", "Oceans are deep.")

	assert.Equal(t, "notes.txt", ix.FileName())
	assert.Equal(t, "preview", ix.Summary())
	assert.Equal(t, 3, ix.Len())

	res, err := ix.Retrieve(context.Background(), "What color is the sky?", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "The sky is blue.", res[0].Chunk.Text)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	ix := build(t, "a1 alpha", "b1 beta", "c1 gamma", "d1 delta", "e1 epsilon", "f1 zeta")
	res, err := ix.Retrieve(context.Background(), "alpha", 0)
	require.NoError(t, err)
	assert.Len(t, res, DefaultTopK)
}

func TestRetrieveLexicalFallback(t *testing.T) {
	ix := build(t, "The sky is blue.", "Grass is green.")

	// "the" and "is" are stopwords for the embedder, so the query vector is
	// zero and ranking falls back to word overlap.
	res, err := ix.Retrieve(context.Background(), "is the", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "The sky is blue.", res[0].Chunk.Text)
	assert.Greater(t, res[0].Score, 0.0)
}

type failingEmbedder struct{ *tfidf.Embedder }

func (failingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("boom")
}

func TestRetrieveEmbedError(t *testing.T) {
	ix := build(t, "The sky is blue.")
	ix.embedder = failingEmbedder{}
	_, err := ix.Retrieve(context.Background(), "sky", 1)
	assert.ErrorContains(t, err, "boom")
}

func TestNewRejectsMismatch(t *testing.T) {
	store := memory.NewStorage()
	require.NoError(t, store.Init(1))
	_, err := New("x", store, tfidf.NewEmbedder(), []domain.Chunk{{}}, "")
	assert.Error(t, err)

	_, err = New("x", nil, nil, nil, "")
	assert.Error(t, err)
}
