package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrUnknownProvider = errors.New("unknown provider")

const (
	ProviderAzure       = "azure"
	ProviderOpenAI      = "openai"
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	Deployment  string // Azure deployment name, defaults to Model
	APIKey      string
	Endpoint    string // Azure resource endpoint
	APIVersion  string
	BaseURL     string // OpenAI-compatible or Ollama server URL
	Temperature float64
	MaxTokens   int

	// HTTPClient overrides the transport for the OpenAI-compatible providers.
	HTTPClient *http.Client
}

// NewChatModel builds the langchaingo model for the configured provider.
func NewChatModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case ProviderAzure:
		deployment := config.Deployment
		if deployment == "" {
			deployment = config.Model
		}
		opts := []openai.Option{
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(config.Endpoint),
			openai.WithToken(config.APIKey),
			openai.WithModel(deployment),
			openai.WithEmbeddingModel(deployment),
			openai.WithAPIVersion(config.APIVersion),
		}
		if config.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(config.HTTPClient))
		}
		return newOpenAI(opts)

	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(config.Model),
		}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		if config.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(config.HTTPClient))
		}
		return newOpenAI(opts)

	case ProviderOllama:
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default Ollama URL
		}
		model, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(baseURL))
		if err != nil {
			return nil, err
		}
		return model, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
}

func newOpenAI(opts []openai.Option) (llms.Model, error) {
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// ChatEngine sends single prompts to a model with fixed sampling options.
type ChatEngine struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewChatEngine(model llms.Model, temperature float64, maxTokens int) *ChatEngine {
	return &ChatEngine{
		llm:         model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// NewWithConfig creates the model for config and wraps it in a ChatEngine.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	model, err := NewChatModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewChatEngine(model, config.Temperature, config.MaxTokens), nil
}

func (ce *ChatEngine) options() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(ce.temperature)}
	if ce.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(ce.maxTokens))
	}
	return opts
}

// Complete sends prompt as a single user message and returns the reply text.
func (ce *ChatEngine) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := ce.llm.GenerateContent(ctx, userMessage(prompt), ce.options()...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return firstChoice(resp)
}

// Stream is Complete with onChunk called for each streamed fragment. Models
// that do not stream get the full reply as one chunk.
func (ce *ChatEngine) Stream(ctx context.Context, prompt string, onChunk func(string) error) (string, error) {
	streamed := false
	opts := append(ce.options(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		streamed = true
		return onChunk(string(chunk))
	}))

	resp, err := ce.llm.GenerateContent(ctx, userMessage(prompt), opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	text, err := firstChoice(resp)
	if err != nil {
		return "", err
	}
	if !streamed && text != "" {
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func userMessage(prompt string) []llms.MessageContent {
	return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("chat error: no response from LLM")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
