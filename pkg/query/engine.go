// Package query answers questions by retrieving nodes from an index and
// synthesizing a response with an LLM.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/tokenizer"
	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/cache"
	"go.uber.org/zap"
)

const (
	ModeCompact = "compact"
	ModeRefine  = "refine"
	ModeSimple  = "simple"
)

// LLM is the completion surface the engine needs; *llm.ChatEngine satisfies it.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string, onChunk func(string) error) (string, error)
}

type Options struct {
	ResponseMode  string
	ContextWindow int
	NumOutput     int
	// TokenCounter defaults to the tiktoken count for TokenizerModel.
	TokenCounter   func(string) int
	TokenizerModel string
	Cache          cache.Cache
	QATemplate     string
	RefineTemplate string
	Logger         *zap.Logger
}

type Engine struct {
	retriever types.Retriever
	llm       LLM
	opts      Options
	qa        prompts.PromptTemplate
	refine    prompts.PromptTemplate
	log       *zap.SugaredLogger
}

var _ types.Answerer = (*Engine)(nil)

func NewEngine(retriever types.Retriever, chat LLM, opts Options) *Engine {
	if opts.ResponseMode == "" {
		opts.ResponseMode = ModeCompact
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 128000
	}
	if opts.NumOutput < 0 {
		opts.NumOutput = 0
	}
	if opts.TokenizerModel == "" {
		opts.TokenizerModel = "gpt-4o-mini"
	}
	if opts.QATemplate == "" {
		opts.QATemplate = DefaultQATemplate
	}
	if opts.RefineTemplate == "" {
		opts.RefineTemplate = DefaultRefineTemplate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TokenCounter == nil {
		count, err := tokenizer.CountFunc(opts.TokenizerModel)
		if err != nil {
			opts.Logger.Warn("Approximating token counts", zap.String("model", opts.TokenizerModel), zap.Error(err))
		}
		opts.TokenCounter = count
	}

	return &Engine{
		retriever: retriever,
		llm:       chat,
		opts:      opts,
		qa:        qaTemplate(opts.QATemplate),
		refine:    refineTemplate(opts.RefineTemplate),
		log:       opts.Logger.Sugar(),
	}
}

// Query answers question. The question is used exactly as given.
func (e *Engine) Query(ctx context.Context, question string) (*models.Response, error) {
	return e.answer(ctx, question, nil)
}

// Stream is Query with the final LLM call streamed to onChunk. Cached and
// empty responses arrive as a single chunk.
func (e *Engine) Stream(ctx context.Context, question string, onChunk func(string) error) (*models.Response, error) {
	return e.answer(ctx, question, onChunk)
}

func (e *Engine) answer(ctx context.Context, question string, onChunk func(string) error) (*models.Response, error) {
	if e.opts.Cache != nil {
		cached, err := e.opts.Cache.Get(ctx, question)
		switch {
		case err == nil:
			e.log.Debugw("Answer served from cache")
			if onChunk != nil {
				if err := onChunk(cached); err != nil {
					return nil, err
				}
			}
			return &models.Response{Answer: cached}, nil
		case !errors.Is(err, cache.ErrMiss):
			e.log.Warnw("Cache lookup failed", "error", err)
		}
	}

	nodes, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(nodes) == 0 {
		e.log.Infow("No context retrieved")
		if onChunk != nil {
			if err := onChunk(models.EmptyResponse); err != nil {
				return nil, err
			}
		}
		return &models.Response{}, nil
	}

	chunks, err := e.chunks(nodes)
	if err != nil {
		return nil, err
	}

	answer, err := e.synthesize(ctx, question, chunks, onChunk)
	if err != nil {
		return nil, err
	}

	if e.opts.Cache != nil && strings.TrimSpace(answer) != "" {
		if err := e.opts.Cache.Set(ctx, question, answer); err != nil {
			e.log.Warnw("Failed to cache answer", "error", err)
		}
	}

	return &models.Response{Answer: answer, SourceNodes: nodes}, nil
}

// chunks groups node texts into the context blocks of successive LLM calls.
func (e *Engine) chunks(nodes []models.ScoredNode) ([]string, error) {
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}

	switch e.opts.ResponseMode {
	case ModeSimple:
		return []string{strings.Join(texts, "\n\n")}, nil
	case ModeRefine:
		return texts, nil
	case ModeCompact:
		budget, err := e.contextBudget()
		if err != nil {
			return nil, err
		}
		return pack(texts, budget, e.opts.TokenCounter), nil
	}
	return nil, fmt.Errorf("unknown response mode %q", e.opts.ResponseMode)
}

// contextBudget is the number of tokens left for context once the larger
// template and the reserved output are accounted for.
func (e *Engine) contextBudget() (int, error) {
	qa, err := e.qa.Format(map[string]any{"context_str": "", "query_str": ""})
	if err != nil {
		return 0, fmt.Errorf("invalid QA template: %w", err)
	}
	refine, err := e.refine.Format(map[string]any{"query_str": "", "existing_answer": "", "context_msg": ""})
	if err != nil {
		return 0, fmt.Errorf("invalid refine template: %w", err)
	}

	overhead := e.opts.TokenCounter(qa)
	if n := e.opts.TokenCounter(refine); n > overhead {
		overhead = n
	}
	return e.opts.ContextWindow - e.opts.NumOutput - overhead, nil
}

// pack concatenates texts greedily so that each block stays within budget
// tokens. A single text over budget becomes a block of its own.
func pack(texts []string, budget int, count func(string) int) []string {
	var blocks []string
	current := ""
	for _, text := range texts {
		if current == "" {
			current = text
			continue
		}
		joined := current + "\n\n" + text
		if count(joined) <= budget {
			current = joined
			continue
		}
		blocks = append(blocks, current)
		current = text
	}
	if current != "" {
		blocks = append(blocks, current)
	}
	return blocks
}

// synthesize answers from the first block, then refines the answer with each
// following block. Only the last call is streamed.
func (e *Engine) synthesize(ctx context.Context, question string, blocks []string, onChunk func(string) error) (string, error) {
	var answer string
	for i, block := range blocks {
		var prompt string
		var err error
		if i == 0 {
			prompt, err = e.qa.Format(map[string]any{"context_str": block, "query_str": question})
		} else {
			prompt, err = e.refine.Format(map[string]any{"query_str": question, "existing_answer": answer, "context_msg": block})
		}
		if err != nil {
			return "", fmt.Errorf("failed to render prompt: %w", err)
		}

		if onChunk != nil && i == len(blocks)-1 {
			answer, err = e.llm.Stream(ctx, prompt, onChunk)
		} else {
			answer, err = e.llm.Complete(ctx, prompt)
		}
		if err != nil {
			return "", err
		}
	}

	e.log.Debugw("Synthesized answer", "mode", e.opts.ResponseMode, "llm_calls", len(blocks))
	return answer, nil
}
