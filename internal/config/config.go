package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"slmchat/internal/domain"
)

// InferenceConfig points at the OpenAI-compatible chat completions endpoint.
type InferenceConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HFHubEmbedderConfig configures the Hugging Face feature-extraction embedder.
type HFHubEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedderConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	BatchSize int                   `yaml:"batch_size"`
	HFHub     *HFHubEmbedderConfig  `yaml:"hfhub,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	// ChunkOverlap is nil when unset so that an explicit 0 disables overlap.
	ChunkOverlap      *int   `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// DefaultChunkOverlap applies when chunk_overlap is absent.
const DefaultChunkOverlap = 100

// Overlap returns the configured overlap, or DefaultChunkOverlap when unset.
func (c ChunkerConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return DefaultChunkOverlap
	}
	return *c.ChunkOverlap
}

// RetrievalConfig configures document QA.
type RetrievalConfig struct {
	TopK         int    `yaml:"top_k"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ChatConfig configures free chat.
type ChatConfig struct {
	// SystemPrompt is sent ahead of the history when non-empty.
	SystemPrompt string `yaml:"system_prompt"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	BodyLimitMB       int    `yaml:"body_limit_mb"`
	CorsAllowOrigins  string `yaml:"cors_allow_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	File       string `yaml:"file"`
	Production bool   `yaml:"production"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Models     ModelTable       `yaml:"models"`
	Defaults   domain.Params    `yaml:"defaults"`
	Inference  InferenceConfig  `yaml:"inference"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chat       ChatConfig       `yaml:"chat"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`

	// Token is the initial Hugging Face token taken from HF_TOKEN. It is
	// never written back to disk.
	Token string `yaml:"-"`
}

// QASystemPrompt is the fixed instruction used for document QA.
const QASystemPrompt = `Use the document to answer the questions.
If you don't know the answer, just say that you don't know. Do not generate other questions.
Use three sentences maximum and keep the answer as concise as possible.`

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/slmchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/slmchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// LoadEnv loads envFile (if present) and applies environment overrides.
func LoadEnv(cfg *AppConfig, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	cfg.Token = strings.TrimSpace(os.Getenv("HF_TOKEN"))
	if v := os.Getenv("SLMCHAT_INFERENCE_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("SLMCHAT_EMBEDDER"); v != "" {
		cfg.Embedder.Type = v
		applyConfigDefaults(cfg)
	}
	if v := os.Getenv("SLMCHAT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SLMCHAT_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("SLMCHAT_ENV"); v != "" {
		cfg.Log.Production = v == "production"
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the model table invariant and the default parameters.
func (c *AppConfig) Validate() error {
	if err := c.Models.Validate(); err != nil {
		return err
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if overlap := c.Chunker.Overlap(); overlap < 0 || overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be in [0, chunk_size %d)", overlap, c.Chunker.ChunkSize)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "slmchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Models:     DefaultModels(),
		Defaults:   domain.DefaultParams(),
		Embedder:   EmbedderConfig{Type: "hfhub"},
		Chunker:    ChunkerConfig{Type: "recursive"},
		Summarizer: SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.Defaults == (domain.Params{}) {
		cfg.Defaults = domain.DefaultParams()
	}
	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "https://router.huggingface.co/v1"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hfhub"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	switch cfg.Embedder.Type {
	case "hfhub":
		if cfg.Embedder.HFHub == nil {
			cfg.Embedder.HFHub = &HFHubEmbedderConfig{}
		}
		if cfg.Embedder.HFHub.BaseURL == "" {
			cfg.Embedder.HFHub.BaseURL = "https://router.huggingface.co/hf-inference/models"
		}
		if cfg.Embedder.HFHub.Model == "" {
			cfg.Embedder.HFHub.Model = "sentence-transformers/all-mpnet-base-v2"
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = cfg.Inference.BaseURL
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "sentence-transformers/all-mpnet-base-v2"
		}
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == nil {
		overlap := DefaultChunkOverlap
		cfg.Chunker.ChunkOverlap = &overlap
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.SystemPrompt == "" {
		cfg.Retrieval.SystemPrompt = QASystemPrompt
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":7860"
	}
	if cfg.Server.SessionTTLMinutes == 0 {
		cfg.Server.SessionTTLMinutes = 60
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = 20
	}
	if cfg.Server.CorsAllowOrigins == "" {
		cfg.Server.CorsAllowOrigins = "*"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "slmchat.log"
	}
}
