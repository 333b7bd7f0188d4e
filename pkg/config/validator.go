package config

import (
	"fmt"
	"net/url"

	"github.com/tmc/langchaingo/prompts"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	llmProviders      = []string{"azure", "openai", "ollama"}
	embedderProviders = []string{"huggingface", "azure", "openai", "ollama"}
	splitters         = []string{"sentence", "recursive", "markdown", "token"}
	stores            = []string{"memory", "pgvector"}
	responseModes     = []string{"compact", "refine", "simple"}
)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, format string, args ...interface{}) {
		errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Validate LLM config
	if !oneOf(c.LLM.Provider, llmProviders) {
		add("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	switch c.LLM.Provider {
	case "azure":
		if c.LLM.APIKey == "" {
			add("llm.api_key", "AZURE_OPENAI_KEY is required")
		}
		if c.LLM.Endpoint == "" {
			add("llm.endpoint", "AZURE_OPENAI_ENDPOINT is required")
		} else if !isAbsURL(c.LLM.Endpoint) {
			add("llm.endpoint", "invalid endpoint URL")
		}
	case "openai":
		if c.LLM.APIKey == "" {
			add("llm.api_key", "api key is required")
		}
	case "ollama":
		if !isAbsURL(c.LLM.BaseURL) {
			add("llm.base_url", "invalid Ollama base URL")
		}
	}

	if c.LLM.MaxTokens < 0 || c.LLM.MaxTokens > 16384 {
		add("llm.max_tokens", "max_tokens must be between 0 (no cap) and 16384")
	}
	if c.LLM.NumOutput < 0 {
		add("llm.num_output", "num_output cannot be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "temperature must be between 0 and 2")
	}
	if c.LLM.ContextWindow <= c.LLM.ReservedOutput() {
		add("llm.context_window", "context_window must be greater than the reserved output")
	}

	// Validate Embedder config
	if !oneOf(c.Embedder.Provider, embedderProviders) {
		add("embedder.provider", "unknown provider %q", c.Embedder.Provider)
	}
	if c.Embedder.Provider == "huggingface" && c.Embedder.Token == "" {
		add("embedder.token", "HUGGINGFACEHUB_API_TOKEN is required")
	}
	if c.Embedder.Provider == "azure" && c.Embedder.Deployment == "" {
		add("embedder.deployment", "embedding deployment is required for azure")
	}
	if c.Embedder.BatchSize < 1 {
		add("embedder.batch_size", "batch_size must be positive")
	}
	if c.Embedder.Workers < 1 {
		add("embedder.workers", "workers must be positive")
	}

	if c.Data.Dir == "" {
		add("data.dir", "data directory is required")
	}

	// Validate Processor config
	if !oneOf(c.Processor.Splitter, splitters) {
		add("processor.splitter", "unknown splitter %q", c.Processor.Splitter)
	}
	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}
	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}

	if !oneOf(c.Index.Store, stores) {
		add("index.store", "unknown store %q", c.Index.Store)
	}
	if c.Index.Store == "pgvector" && c.Database.URL == "" {
		add("database.url", "database url is required for the pgvector store")
	}

	if c.Query.SimilarityTopK < 1 {
		add("query.similarity_top_k", "similarity_top_k must be positive")
	}
	if !oneOf(c.Query.ResponseMode, responseModes) {
		add("query.response_mode", "unknown response mode %q", c.Query.ResponseMode)
	}
	if c.Query.QATemplate != "" {
		if err := prompts.CheckValidTemplate(c.Query.QATemplate, prompts.TemplateFormatFString, []string{"context_str", "query_str"}); err != nil {
			add("query.qa_template", "%v", err)
		}
	}
	if c.Query.RefineTemplate != "" {
		if err := prompts.CheckValidTemplate(c.Query.RefineTemplate, prompts.TemplateFormatFString, []string{"query_str", "existing_answer", "context_msg"}); err != nil {
			add("query.refine_template", "%v", err)
		}
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			add("database.url", "invalid database URL")
		}
	}
	if c.Database.VectorDim < 1 {
		add("database.vector_dim", "vector_dim must be positive")
	}
	if c.Database.BatchSize < 1 {
		add("database.batch_size", "batch_size must be positive")
	}

	// Validate Scraper config
	for _, u := range c.Scraper.URLs {
		if !isAbsURL(u) {
			add("scraper.urls", "invalid URL %q", u)
		}
	}
	if c.Scraper.MaxDepth < 0 {
		add("scraper.max_depth", "max_depth must not be negative")
	}
	if c.Scraper.RateLimit <= 0 {
		add("scraper.rate_limit", "rate_limit must be positive")
	}

	if c.Cache.Enabled && c.Cache.RedisURL != "" {
		if _, err := url.Parse(c.Cache.RedisURL); err != nil {
			add("cache.redis_url", "invalid redis URL")
		}
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl", "ttl must not be negative")
	}

	if c.Server.Addr == "" {
		add("server.addr", "listen address is required")
	}

	return errors
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func isAbsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
