// Package index holds the searchable form of one uploaded document.
package index

import (
	"context"
	"errors"
	"fmt"

	"slmchat/internal/domain"
	"slmchat/internal/embedding"
	"slmchat/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Index is built once per upload and never modified afterwards.
// A new upload replaces it wholesale.
type Index struct {
	fileName string
	summary  string
	embedder embedding.Embedder
	store    vectorstore.Storage
	chunks   []domain.Chunk
}

// New wraps a populated store. embedder must be the one that produced the
// stored vectors, since queries are embedded with it.
func New(fileName string, store vectorstore.Storage, embedder embedding.Embedder, chunks []domain.Chunk, summary string) (*Index, error) {
	if store == nil || embedder == nil {
		return nil, errors.New("index: store and embedder are required")
	}
	if store.Len() != len(chunks) {
		return nil, fmt.Errorf("index: store holds %d vectors for %d chunks", store.Len(), len(chunks))
	}
	return &Index{
		fileName: fileName,
		summary:  summary,
		embedder: embedder,
		store:    store,
		chunks:   chunks,
	}, nil
}

// FileName is the name of the uploaded file.
func (ix *Index) FileName() string { return ix.fileName }

// Summary is a short preview of the document.
func (ix *Index) Summary() string { return ix.summary }

// Len is the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Retrieve returns up to k chunks nearest to query, best first.
// When the query embeds to a zero vector (an offline embedder that knows none
// of its words) the ranking falls back to lexical overlap.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	if isZero(vecs[0]) {
		return lexicalSearch(ix.chunks, query, k), nil
	}
	res, err := ix.store.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return lexicalSearch(ix.chunks, query, k), nil
	}
	return res, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
