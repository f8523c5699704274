// Package config loads the skillgap command configuration from YAML, .env and
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dan-solli/skillgap/pkg/skillgap"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "skillgap.yaml"

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// LLMConfig selects the extraction model.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// NormalizeConfig tunes clustering and ranking.
type NormalizeConfig struct {
	TopN                int     `yaml:"top_n"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinClusterSize      int     `yaml:"min_cluster_size"`
	MaxConcurrency      int     `yaml:"max_concurrency"`
}

// Config is the root command configuration.
type Config struct {
	OpenAIKey string          `yaml:"openai_api_key"`
	OllamaURL string          `yaml:"ollama_url"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Normalize NormalizeConfig `yaml:"normalize"`
	CachePath string          `yaml:"cache_path"`
	LogLevel  string          `yaml:"log_level"`
	TracePath string          `yaml:"trace_path"`
}

// Load reads the YAML file at path, then .env, then environment overrides.
// A missing file yields defaults; an empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OllamaURL = getEnv("SKILLGAP_OLLAMA_URL", c.OllamaURL)
	c.Embedding.Provider = getEnv("SKILLGAP_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getEnv("SKILLGAP_EMBEDDING_MODEL", c.Embedding.Model)
	c.LLM.Provider = getEnv("SKILLGAP_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("SKILLGAP_LLM_MODEL", c.LLM.Model)
	c.CachePath = getEnv("SKILLGAP_CACHE_PATH", c.CachePath)
	c.LogLevel = getEnv("SKILLGAP_LOG_LEVEL", c.LogLevel)
	c.TracePath = getEnv("SKILLGAP_TRACE_PATH", c.TracePath)

	var err error
	if c.Normalize.TopN, err = getEnvInt("SKILLGAP_TOP_N", c.Normalize.TopN); err != nil {
		return err
	}
	if c.Normalize.SimilarityThreshold, err = getEnvFloat("SKILLGAP_SIMILARITY_THRESHOLD", c.Normalize.SimilarityThreshold); err != nil {
		return err
	}
	if c.Normalize.MinClusterSize, err = getEnvInt("SKILLGAP_MIN_CLUSTER_SIZE", c.Normalize.MinClusterSize); err != nil {
		return err
	}
	if c.Normalize.MaxConcurrency, err = getEnvInt("SKILLGAP_MAX_CONCURRENCY", c.Normalize.MaxConcurrency); err != nil {
		return err
	}
	return nil
}

// SkillGap converts the command configuration into a library configuration.
func (c *Config) SkillGap() skillgap.Config {
	return skillgap.Config{
		OpenAIKey:           c.OpenAIKey,
		EmbeddingProvider:   strings.ToLower(c.Embedding.Provider),
		EmbeddingModel:      c.Embedding.Model,
		OllamaURL:           c.OllamaURL,
		LLMProvider:         strings.ToLower(c.LLM.Provider),
		LLMModel:            c.LLM.Model,
		TopN:                c.Normalize.TopN,
		SimilarityThreshold: c.Normalize.SimilarityThreshold,
		MinClusterSize:      c.Normalize.MinClusterSize,
		CachePath:           c.CachePath,
		MaxConcurrency:      c.Normalize.MaxConcurrency,
		TraceEnabled:        c.TracePath != "",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
	return f, nil
}
