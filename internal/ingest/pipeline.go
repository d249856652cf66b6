// Package ingest turns an uploaded file into a searchable document index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"slmchat/internal/domain"
	"slmchat/internal/embedding"
	"slmchat/internal/index"
	"slmchat/internal/loader"
	"slmchat/internal/logger"
	"slmchat/internal/vectorstore"
	"slmchat/internal/vectorstore/memory"
)

const (
	MsgNeedCredential = "Please set a valid API key before uploading documents. ⚠️"
	msgProcessed      = "✅ Document processed successfully: %s"
	msgFailed         = "❌ Error processing document: %s"

	previewRunes = 300
)

// Upload is a file received from a UI.
type Upload struct {
	Name string
	Data []byte
}

// Options configures a Pipeline. Chunker and Embedders are required.
type Options struct {
	Chunker          domain.Chunker
	Embedders        embedding.Factory
	NewStorage       func() vectorstore.Storage
	Summarizer       domain.Summarizer
	SummarySentences int
	BatchSize        int
	Logger           logger.Logger
}

// Pipeline builds a fresh index per upload. It is safe for concurrent use.
type Pipeline struct {
	chunker          domain.Chunker
	embedders        embedding.Factory
	newStorage       func() vectorstore.Storage
	summarizer       domain.Summarizer
	summarySentences int
	batchSize        int
	log              logger.Logger
}

func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		chunker:          opts.Chunker,
		embedders:        opts.Embedders,
		newStorage:       opts.NewStorage,
		summarizer:       opts.Summarizer,
		summarySentences: opts.SummarySentences,
		batchSize:        opts.BatchSize,
		log:              opts.Logger,
	}
	if p.newStorage == nil {
		p.newStorage = func() vectorstore.Storage { return memory.NewStorage() }
	}
	if p.batchSize <= 0 {
		p.batchSize = 32
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	return p
}

// Ingest builds an index for upload using cred for remote embedding.
// On any failure no index is returned and the previous one, if any, stays
// in the caller's hands.
func (p *Pipeline) Ingest(ctx context.Context, upload *Upload, cred domain.Credential) (*index.Index, domain.Result) {
	if !cred.Valid {
		return nil, domain.Fail(domain.KindCredential, MsgNeedCredential, "")
	}
	if upload == nil {
		return nil, domain.Result{Kind: domain.KindNoop}
	}

	name := filepath.Base(upload.Name)
	started := time.Now()
	ix, err := p.build(ctx, name, upload.Data, cred)
	if err != nil {
		p.log.Error("INGEST", "Document processing failed", map[string]interface{}{
			"file":  name,
			"error": err,
		})
		return nil, Failure(err)
	}

	p.log.Info("INGEST", "Document indexed", map[string]interface{}{
		"file":        name,
		"chunks":      ix.Len(),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return ix, domain.Ok(fmt.Sprintf(msgProcessed, name))
}

// Failure is the result reported for a document that could not be processed.
func Failure(err error) domain.Result {
	return domain.Fail(domain.KindIngestion, fmt.Sprintf(msgFailed, err), err.Error())
}

func (p *Pipeline) build(ctx context.Context, name string, data []byte, cred domain.Credential) (*index.Index, error) {
	path, cleanup, err := scratchFile(name, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	documents, err := loader.Load(path, name)
	if err != nil {
		return nil, err
	}

	var (
		allChunks []domain.Chunk
		allTexts  []string
		fullText  strings.Builder
	)
	for _, d := range documents {
		chunks, err := p.chunker.Chunk(d)
		if err != nil {
			return nil, err
		}
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
		fullText.WriteString("\n")
		fullText.WriteString(d.Content)
	}
	if len(allChunks) == 0 {
		return nil, loader.ErrEmptyDocument
	}

	embedder, err := p.embedders(cred)
	if err != nil {
		return nil, err
	}
	if err := embedder.Prepare(allTexts); err != nil {
		return nil, err
	}
	vectors, err := embedding.EmbedAll(ctx, embedder, allTexts, p.batchSize)
	if err != nil {
		return nil, err
	}

	store := p.newStorage()
	if err := store.Init(len(vectors[0])); err != nil {
		return nil, err
	}
	if err := store.Upsert(allChunks, vectors); err != nil {
		return nil, err
	}

	return index.New(name, store, embedder, allChunks, p.summarize(fullText.String()))
}

// summarize is best effort: a failed preview never fails the upload.
func (p *Pipeline) summarize(text string) string {
	if p.summarizer == nil {
		return ""
	}
	summary, err := p.summarizer.Summarize(text, p.summarySentences)
	if err != nil {
		p.log.Warn("INGEST", "Summary failed", map[string]interface{}{"error": err.Error()})
		return ""
	}
	if utf8.RuneCountInString(summary) > previewRunes {
		summary = string([]rune(summary)[:previewRunes]) + "…"
	}
	return summary
}

// scratchFile writes data to a temporary file that keeps name's extension,
// since loaders are selected by extension.
func scratchFile(name string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "slmchat-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
