package llm

import (
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/embeddings"
	hfemb "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type EmbedderConfig struct {
	Provider   string
	Model      string
	Task       string // Hugging Face pipeline task
	Token      string
	URL        string // inference endpoint or server URL
	Deployment string // Azure embedding deployment
	APIKey     string
	Endpoint   string
	APIVersion string
	BatchSize  int

	HTTPClient *http.Client
}

// NewEmbedder returns an embeddings.Embedder for the configured provider.
func NewEmbedder(config EmbedderConfig) (embeddings.Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	switch config.Provider {
	case ProviderHuggingFace:
		opts := []huggingface.Option{huggingface.WithModel(config.Model)}
		if config.Token != "" {
			opts = append(opts, huggingface.WithToken(config.Token))
		}
		if config.URL != "" {
			opts = append(opts, huggingface.WithURL(config.URL))
		}
		client, err := huggingface.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Hugging Face client: %w", err)
		}

		task := config.Task
		if task == "" {
			task = "feature-extraction"
		}
		emb, err := hfemb.NewHuggingface(
			hfemb.WithClient(*client),
			hfemb.WithModel(config.Model),
			hfemb.WithTask(task),
			hfemb.WithBatchSize(config.BatchSize),
			hfemb.WithStripNewLines(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return emb, nil

	case ProviderAzure, ProviderOpenAI:
		opts := []openai.Option{}
		if config.Provider == ProviderAzure {
			deployment := config.Deployment
			if deployment == "" {
				deployment = config.Model
			}
			opts = append(opts,
				openai.WithAPIType(openai.APITypeAzure),
				openai.WithBaseURL(config.Endpoint),
				openai.WithModel(deployment),
				openai.WithEmbeddingModel(deployment),
				openai.WithAPIVersion(config.APIVersion),
			)
		} else {
			opts = append(opts, openai.WithEmbeddingModel(config.Model))
			if config.URL != "" {
				opts = append(opts, openai.WithBaseURL(config.URL))
			}
		}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(config.HTTPClient))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return newClientEmbedder(client, config.BatchSize)

	case ProviderOllama:
		url := config.URL
		if url == "" {
			url = "http://localhost:11434" // Default Ollama URL
		}
		client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(url))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return newClientEmbedder(client, config.BatchSize)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
}

func newClientEmbedder(client embeddings.EmbedderClient, batchSize int) (embeddings.Embedder, error) {
	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}
