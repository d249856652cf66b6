// Package bootstrap assembles the application from its configuration.
package bootstrap

import (
	"fmt"
	"time"

	"slmchat/internal/chunker"
	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/embedding"
	"slmchat/internal/embedding/hfhub"
	"slmchat/internal/embedding/openai"
	"slmchat/internal/embedding/tfidf"
	"slmchat/internal/events"
	"slmchat/internal/ingest"
	"slmchat/internal/llm"
	"slmchat/internal/logger"
	"slmchat/internal/responder"
	"slmchat/internal/server"
	"slmchat/internal/session"
	"slmchat/internal/summarizer"
	"slmchat/internal/tokens"
	"slmchat/internal/vectorstore"
	"slmchat/internal/vectorstore/memory"
)

// LocalSessionID names the single session the terminal UI drives.
const LocalSessionID = "local"

// App holds the wired components shared by both front ends.
type App struct {
	Config *config.AppConfig
	Logger logger.Logger
	Bus    *events.Bus
	Deps   session.Deps
}

// New wires every component described by cfg.
func New(cfg *config.AppConfig, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	embedders, err := NewEmbedderFactory(cfg.Embedder, cfg.Inference)
	if err != nil {
		return nil, err
	}
	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	sum, err := NewSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}

	pipeline := ingest.NewPipeline(ingest.Options{
		Chunker:          ch,
		Embedders:        embedders,
		NewStorage:       func() vectorstore.Storage { return memory.NewStorage() },
		Summarizer:       sum,
		SummarySentences: cfg.Summarizer.MaxSentences,
		BatchSize:        cfg.Embedder.BatchSize,
		Logger:           log,
	})

	engine := responder.New(responder.Options{
		Models: cfg.Models,
		Client: llm.NewClient(llm.Config{
			BaseURL: cfg.Inference.BaseURL,
			Timeout: seconds(cfg.Inference.TimeoutSecs),
		}),
		Tokens:           tokens.NewCounter(),
		ChatSystemPrompt: cfg.Chat.SystemPrompt,
		QASystemPrompt:   cfg.Retrieval.SystemPrompt,
		TopK:             cfg.Retrieval.TopK,
		Logger:           log,
	})

	bus := events.NewBus(log)
	log.Info("BOOTSTRAP", "Components ready", map[string]interface{}{
		"embedder": cfg.Embedder.Type,
		"chunker":  cfg.Chunker.Type,
		"models":   len(cfg.Models),
	})

	return &App{
		Config: cfg,
		Logger: log,
		Bus:    bus,
		Deps: session.Deps{
			Ingester: pipeline,
			Engine:   engine,
			Notifier: bus,
			Logger:   log,
		},
	}, nil
}

// LocalSession creates the terminal session, seeded with the token from
// the environment when there is one.
func (a *App) LocalSession() *session.Session {
	return session.New(LocalSessionID, a.Deps, domain.NewCredential(a.Config.Token))
}

// Server builds the HTTP front end over an expiring session store.
func (a *App) Server() *server.Server {
	ttl := time.Duration(a.Config.Server.SessionTTLMinutes) * time.Minute
	return server.New(server.Options{
		Config:   a.Config.Server,
		Store:    session.NewStore(ttl, a.Deps, domain.NewCredential(a.Config.Token)),
		Models:   a.Config.Models,
		Defaults: a.Config.Defaults,
		Bus:      a.Bus,
		Logger:   a.Logger,
	})
}

// Close releases the event bus and flushes the logger.
func (a *App) Close() error {
	err := a.Bus.Close()
	_ = a.Logger.Sync()
	return err
}

// NewEmbedderFactory returns a factory building one embedder per document.
// Remote embedders authenticate with the uploading session's token.
func NewEmbedderFactory(cfg config.EmbedderConfig, inf config.InferenceConfig) (embedding.Factory, error) {
	switch cfg.Type {
	case "hfhub", "":
		hub := config.HFHubEmbedderConfig{}
		if cfg.HFHub != nil {
			hub = *cfg.HFHub
		}
		return func(cred domain.Credential) (embedding.Embedder, error) {
			if !cred.Valid {
				return nil, embedding.ErrNoCredential
			}
			return hfhub.NewClient(hfhub.Config{
				BaseURL: hub.BaseURL,
				Model:   hub.Model,
				Token:   cred.Token,
				Timeout: seconds(hub.TimeoutSecs),
			})
		}, nil
	case "openai":
		oa := config.OpenAIEmbedderConfig{}
		if cfg.OpenAI != nil {
			oa = *cfg.OpenAI
		}
		if oa.BaseURL == "" {
			oa.BaseURL = inf.BaseURL
		}
		return func(cred domain.Credential) (embedding.Embedder, error) {
			if !cred.Valid {
				return nil, embedding.ErrNoCredential
			}
			return openai.NewClient(openai.Config{
				BaseURL: oa.BaseURL,
				APIKey:  cred.Token,
				Model:   oa.Model,
				Timeout: seconds(inf.TimeoutSecs),
			})
		}, nil
	case "tfidf":
		return func(domain.Credential) (embedding.Embedder, error) {
			return tfidf.NewEmbedder(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func NewChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.Overlap()), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func NewSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
