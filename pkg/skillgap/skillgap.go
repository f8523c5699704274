// Package skillgap ranks the skills a job market asks for and compares them with
// what a candidate already knows.
package skillgap

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dan-solli/skillgap/pkg/embeddings"
	"github.com/dan-solli/skillgap/pkg/extraction"
	"github.com/dan-solli/skillgap/pkg/llm"
	"github.com/dan-solli/skillgap/pkg/metrics"
	"github.com/dan-solli/skillgap/pkg/skills"
	"github.com/dan-solli/skillgap/pkg/store"
	"github.com/dan-solli/skillgap/pkg/trace"
)

// Provider names accepted in Config.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOllamaEmbeddingModel = "all-minilm"
	defaultOllamaLLMModel       = "llama3:8b"
	defaultMaxConcurrency       = 4
)

// Config holds configuration for the SkillGap system
type Config struct {
	// OpenAI API key for embeddings and LLM
	OpenAIKey string

	// EmbeddingProvider is "openai" (default) or "ollama"
	EmbeddingProvider string

	// Embedding model (default: "text-embedding-3-small", or "all-minilm" for Ollama)
	EmbeddingModel string

	// OllamaURL is the Ollama server address (default: "http://127.0.0.1:11434")
	OllamaURL string

	// LLMProvider is "openai" (default) or "ollama"
	LLMProvider string

	// LLM model for skill extraction (default: "gpt-4o-mini", or "llama3:8b" for Ollama)
	LLMModel string

	// TopN is the number of ranked skills returned (default: 30)
	TopN int

	// SimilarityThreshold links two labels into one cluster (default: 0.85)
	SimilarityThreshold float64

	// MinClusterSize is the smallest cluster reported (default: 2)
	MinClusterSize int

	// CachePath is a SQLite file for embedding vectors. Empty keeps them in memory.
	CachePath string

	// MaxConcurrency bounds parallel categories in RankCategories (default: 4)
	MaxConcurrency int

	// TraceEnabled records an OperationTrace for every operation
	TraceEnabled bool
}

func (cfg *Config) applyDefaults() {
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = ProviderOpenAI
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = ProviderOpenAI
	}
	if cfg.EmbeddingModel == "" {
		if cfg.EmbeddingProvider == ProviderOllama {
			cfg.EmbeddingModel = defaultOllamaEmbeddingModel
		} else {
			cfg.EmbeddingModel = defaultOpenAIEmbeddingModel
		}
	}
	if cfg.LLMModel == "" && cfg.LLMProvider == ProviderOllama {
		cfg.LLMModel = defaultOllamaLLMModel
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = embeddings.DefaultOllamaURL
	}
	if cfg.TopN == 0 {
		cfg.TopN = skills.DefaultTopN
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = skills.DefaultSimilarityThreshold
	}
	if cfg.MinClusterSize == 0 {
		cfg.MinClusterSize = skills.DefaultMinClusterSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
}

// options returns the normalizer settings derived from the config.
func (cfg Config) options() skills.Options {
	return skills.Options{
		TopN:                cfg.TopN,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinClusterSize:      cfg.MinClusterSize,
	}
}

// SkillGap is the main entry point for skill ranking and gap analysis
type SkillGap struct {
	config     Config
	embeddings *embeddings.CachedClient
	llm        llm.LLMClient
	cache      store.EmbeddingCache
	normalizer *skills.Normalizer
	extractor  *extraction.SkillExtractor

	logger        *slog.Logger
	metrics       metrics.Collector
	traceExporter trace.Exporter

	mu        sync.Mutex
	lastTrace *OperationTrace
}

// New creates a SkillGap instance with clients built from cfg.
func New(cfg Config) (*SkillGap, error) {
	cfg.applyDefaults()

	var embeddingClient embeddings.EmbeddingClient
	switch cfg.EmbeddingProvider {
	case ProviderOpenAI:
		c := embeddings.NewOpenAIClient(cfg.OpenAIKey)
		c.Model = cfg.EmbeddingModel
		embeddingClient = c
	case ProviderOllama:
		embeddingClient = embeddings.NewOllamaClient(cfg.OllamaURL, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}

	var llmClient llm.LLMClient
	switch cfg.LLMProvider {
	case ProviderOpenAI:
		c := llm.NewOpenAILLM(cfg.OpenAIKey)
		if cfg.LLMModel != "" {
			c.Model = cfg.LLMModel
		}
		llmClient = c
	case ProviderOllama:
		llmClient = llm.NewOllamaClient(cfg.OllamaURL, cfg.LLMModel)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}

	return NewWithClients(cfg, embeddingClient, llmClient)
}

// NewWithClients creates a SkillGap instance around existing clients.
// The embedding client is wrapped with the configured embedding cache.
func NewWithClients(cfg Config, embeddingClient embeddings.EmbeddingClient, llmClient llm.LLMClient) (*SkillGap, error) {
	cfg.applyDefaults()

	if embeddingClient == nil {
		return nil, fmt.Errorf("embedding client is required")
	}

	var cache store.EmbeddingCache
	if cfg.CachePath != "" {
		sqliteCache, err := store.NewSQLiteCache(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		cache = sqliteCache
	} else {
		cache = store.NewMemoryCache()
	}

	cached := embeddings.NewCachedClient(embeddingClient, cache, cfg.EmbeddingModel)

	g := &SkillGap{
		config:     cfg,
		embeddings: cached,
		llm:        llmClient,
		cache:      cache,
		normalizer: skills.NewNormalizer(cached),
		metrics:    metrics.NewNoopCollector(),
	}
	if llmClient != nil {
		g.extractor = extraction.NewSkillExtractor(llmClient)
	}

	return g, nil
}

// WithLogger sets the logger for this instance and its components.
// A nil logger disables logging. Returns the instance for chaining.
func (g *SkillGap) WithLogger(logger *slog.Logger) *SkillGap {
	g.logger = logger
	g.normalizer.Logger = logger
	g.embeddings.WithLogger(logger)
	if g.extractor != nil {
		g.extractor.Logger = logger
	}
	switch c := g.llm.(type) {
	case *llm.OpenAILLM:
		c.Logger = logger
	case *llm.OllamaClient:
		c.Logger = logger
	}
	return g
}

// WithMetrics sets the metrics collector. A nil collector restores the no-op
// default. Returns the instance for chaining.
func (g *SkillGap) WithMetrics(collector metrics.Collector) *SkillGap {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	g.metrics = collector
	return g
}

// WithTraceExporter sets the exporter that receives a record per operation.
// Returns the instance for chaining.
func (g *SkillGap) WithTraceExporter(exporter trace.Exporter) *SkillGap {
	g.traceExporter = exporter
	return g
}

// Config returns the configuration with defaults applied.
func (g *SkillGap) Config() Config {
	return g.config
}

// LastTrace returns the trace of the most recent operation, or nil when tracing is disabled.
func (g *SkillGap) LastTrace() *OperationTrace {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTrace
}

// Close releases the embedding cache and the trace exporter.
func (g *SkillGap) Close() error {
	var firstErr error
	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close embedding cache: %w", err)
		}
	}
	if g.traceExporter != nil {
		if err := g.traceExporter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close trace exporter: %w", err)
		}
	}
	return firstErr
}
