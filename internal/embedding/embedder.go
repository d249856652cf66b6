package embedding

import (
	"context"
	"errors"
	"fmt"

	"slmchat/internal/domain"
)

// ErrNoCredential is returned by factories of remote embedders when the
// session has no valid token.
var ErrNoCredential = errors.New("embedding: valid API credential required")

// Embedder converts free text into numeric vectors.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Factory builds a fresh embedder for one document, bound to cred.
type Factory func(cred domain.Credential) (Embedder, error)

// EmbedAll embeds texts in batches of batchSize, one remote call per batch.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%s embedder returned %d vectors for %d texts", e.Name(), len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
