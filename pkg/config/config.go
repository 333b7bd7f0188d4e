package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle       = "Document Q&A with LlamaIndex + Hugging Face"
	DefaultDescription = "Ask questions about the content of the PDF file (1.pdf)"
	DefaultPlaceholder = "Ask a question about the document..."
)

type LLMConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	Deployment    string  `yaml:"deployment"`
	APIKey        string  `yaml:"api_key"`
	Endpoint      string  `yaml:"endpoint"`
	APIVersion    string  `yaml:"api_version"`
	BaseURL       string  `yaml:"base_url"`
	MaxTokens     int     `yaml:"max_tokens"` // 0 sends no cap
	NumOutput     int     `yaml:"num_output"` // tokens reserved for the answer when packing context
	Temperature   float64 `yaml:"temperature"`
	ContextWindow int     `yaml:"context_window"`
}

// ReservedOutput is the number of tokens kept free for the answer: the
// completion cap when one is set, num_output otherwise.
func (c LLMConfig) ReservedOutput() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return c.NumOutput
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Task       string `yaml:"task"`
	Token      string `yaml:"token"`
	URL        string `yaml:"url"`
	Deployment string `yaml:"deployment"`
	BatchSize  int    `yaml:"batch_size"`
	Workers    int    `yaml:"workers"`
}

type DataConfig struct {
	Dir           string   `yaml:"dir"`
	Recursive     bool     `yaml:"recursive"`
	ExcludeHidden bool     `yaml:"exclude_hidden"`
	Extensions    []string `yaml:"extensions"`
	Exclude       []string `yaml:"exclude"`
	NumFilesLimit int      `yaml:"num_files_limit"`
}

type ProcessorConfig struct {
	Splitter        string   `yaml:"splitter"`
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	MinChunkLength  int      `yaml:"min_chunk_length"`
	RemoveStopwords bool     `yaml:"remove_stopwords"`
	CustomStopwords []string `yaml:"custom_stopwords"`
}

type IndexConfig struct {
	Store   string `yaml:"store"`
	Rebuild bool   `yaml:"rebuild"`
}

type QueryConfig struct {
	SimilarityTopK int    `yaml:"similarity_top_k"`
	ResponseMode   string `yaml:"response_mode"`
	Streaming      bool   `yaml:"streaming"`
	QATemplate     string `yaml:"qa_template"`     // f-string with {context_str} and {query_str}
	RefineTemplate string `yaml:"refine_template"` // f-string with {query_str}, {existing_answer} and {context_msg}
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type ScraperConfig struct {
	URLs              []string `yaml:"urls"`
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisURL  string        `yaml:"redis_url"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Placeholder string `yaml:"placeholder"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Data      DataConfig      `yaml:"data"`
	Processor ProcessorConfig `yaml:"processor"`
	Index     IndexConfig     `yaml:"index"`
	Query     QueryConfig     `yaml:"query"`
	Database  DatabaseConfig  `yaml:"database"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// LoadConfig loads .env, then decodes the YAML file at path (or the first
// default location that exists) over Default, then applies environment
// overrides. Keys present in the file win over defaults, zero values included.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"config.yml",
		filepath.Join(os.Getenv("HOME"), ".config/docqa/config.yaml"),
		"/etc/docqa/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Default returns the configuration used for every key a file leaves out.
// llm.max_tokens stays 0, which sends no completion cap.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:      "azure",
			Model:         "gpt-4o-mini",
			APIVersion:    "2024-08-01-preview",
			Temperature:   0.1,
			NumOutput:     256,
			ContextWindow: 128000,
		},
		Embedder: EmbedderConfig{
			Provider:  "huggingface",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Task:      "feature-extraction",
			BatchSize: 10,
			Workers:   4,
		},
		Data: DataConfig{
			Dir:           "data",
			ExcludeHidden: true,
		},
		Processor: ProcessorConfig{
			Splitter:     "sentence",
			ChunkSize:    1024,
			ChunkOverlap: 20,
		},
		Index: IndexConfig{Store: "memory"},
		Query: QueryConfig{
			SimilarityTopK: 2,
			ResponseMode:   "compact",
		},
		Database: DatabaseConfig{
			TableName: "documents",
			VectorDim: 384,
			BatchSize: 100,
		},
		Scraper: ScraperConfig{
			MaxDepth:          3,
			RateLimit:         2.0,
			AllowedExtensions: []string{".html", ".htm", "/", ""},
		},
		Cache: CacheConfig{
			TTL:       time.Hour,
			KeyPrefix: "docqa:answer:",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:7860",
			Title:       DefaultTitle,
			Description: DefaultDescription,
			Placeholder: DefaultPlaceholder,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyDefaults fills values derived from other settings.
func applyDefaults(config *Config) {
	if config.LLM.Deployment == "" {
		config.LLM.Deployment = config.LLM.Model
	}
	if config.LLM.Provider == "ollama" && config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("AZURE_OPENAI_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		config.LLM.Endpoint = endpoint
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if token := os.Getenv("HUGGINGFACEHUB_API_TOKEN"); token != "" {
		config.Embedder.Token = token
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if dir := os.Getenv("DOCQA_DATA_DIR"); dir != "" {
		config.Data.Dir = dir
	}
}
