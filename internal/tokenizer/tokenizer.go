// Package tokenizer counts tokens the way the chat model does, using BPE
// ranks bundled into the binary so that no download is needed at runtime.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is used for models tiktoken does not know.
const DefaultEncoding = tiktoken.MODEL_CL100K_BASE

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var (
	mu       sync.Mutex
	encoders = map[string]*tiktoken.Tiktoken{}
)

// Counter counts tokens with one resolved encoding.
type Counter struct {
	name string
	enc  *tiktoken.Tiktoken
}

// EncodingName returns the encoding model uses, or DefaultEncoding.
func EncodingName(model string) string {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name
	}
	best := ""
	for prefix := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return tiktoken.MODEL_PREFIX_TO_ENCODING[best]
	}
	return DefaultEncoding
}

// New resolves the encoding for model once, falling back to DefaultEncoding
// when the model's own encoding cannot be loaded. Encoders are shared between
// counters of the same encoding.
func New(model string) (*Counter, error) {
	name := EncodingName(model)

	mu.Lock()
	defer mu.Unlock()
	enc, err := load(name)
	if err != nil && name != DefaultEncoding {
		var fallbackErr error
		if enc, fallbackErr = load(DefaultEncoding); fallbackErr == nil {
			name, err = DefaultEncoding, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &Counter{name: name, enc: enc}, nil
}

func load(name string) (*tiktoken.Tiktoken, error) {
	if enc, ok := encoders[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", name, err)
	}
	encoders[name] = enc
	return enc, nil
}

// Name is the encoding name, e.g. "o200k_base".
func (c *Counter) Name() string {
	return c.name
}

// Count returns the number of tokens in text. Special tokens are counted as
// plain text.
func (c *Counter) Count(text string) int {
	return len(c.enc.EncodeOrdinary(text))
}

// Approximate estimates four runes per token.
func Approximate(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// CountFunc returns the counter for model, falling back to Approximate when
// no encoding can be loaded. The error is returned alongside the fallback.
func CountFunc(model string) (func(string) int, error) {
	c, err := New(model)
	if err != nil {
		return Approximate, err
	}
	return c.Count, nil
}
