package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/tokenizer"
)

const (
	SplitterSentence  = "sentence"
	SplitterRecursive = "recursive"
	SplitterMarkdown  = "markdown"
	SplitterToken     = "token"
)

// ProcessorConfig sizes are measured by LengthFunc, which defaults to the
// token count of TokenizerModel.
type ProcessorConfig struct {
	Splitter        string
	ChunkSize       int
	ChunkOverlap    int
	MinChunkLength  int
	RemoveStopwords bool
	CustomStopwords []string
	TokenizerModel  string
	LengthFunc      func(string) int
}

type Processor struct {
	config    ProcessorConfig
	splitter  textsplitter.TextSplitter
	length    func(string) int
	stopwords map[string]struct{}
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.Splitter == "" {
		config.Splitter = SplitterSentence
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = 1024
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", config.ChunkOverlap, config.ChunkSize)
	}

	if config.TokenizerModel == "" {
		config.TokenizerModel = "gpt-4o-mini"
	}

	p := &Processor{config: config, length: config.LengthFunc}
	encoding := tokenizer.EncodingName(config.TokenizerModel)
	if p.length == nil {
		counter, err := tokenizer.New(config.TokenizerModel)
		if err != nil {
			return nil, err
		}
		p.length = counter.Count
		encoding = counter.Name()
	}

	switch config.Splitter {
	case SplitterSentence:
		p.splitter = sentenceSplitter{size: config.ChunkSize, overlap: config.ChunkOverlap, length: p.length}
	case SplitterRecursive:
		p.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithLenFunc(p.length),
		)
	case SplitterMarkdown:
		p.splitter = textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithLenFunc(p.length),
			textsplitter.WithHeadingHierarchy(true),
		)
	case SplitterToken:
		// Always counts tokens; special tokens in documents are plain text.
		p.splitter = textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithEncodingName(encoding),
			textsplitter.WithDisallowedSpecial([]string{}),
		)
	default:
		return nil, fmt.Errorf("unknown splitter %q", config.Splitter)
	}

	if config.RemoveStopwords {
		p.stopwords = make(map[string]struct{})
		for _, w := range defaultStopwords {
			p.stopwords[w] = struct{}{}
		}
		for _, w := range config.CustomStopwords {
			p.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}

	return p, nil
}

// Process splits every document into nodes, keeping document order and then
// chunk order.
func (p *Processor) Process(docs []models.Document) ([]models.Node, error) {
	var nodes []models.Node

	for _, doc := range docs {
		text := p.cleanText(doc.Content)
		if text == "" {
			continue
		}

		chunks, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Source, err)
		}
		chunks = p.filterChunks(chunks)

		docID := doc.ID
		if docID == "" {
			docID = doc.Source
		}

		for i, chunk := range chunks {
			metadata := make(map[string]interface{}, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["chunk_index"] = i

			nodes = append(nodes, models.Node{
				ID:         NodeID(docID, i),
				DocumentID: doc.ID,
				Index:      i,
				Text:       chunk,
				Metadata:   metadata,
			})
		}
	}

	return nodes, nil
}

// NodeID is stable for a given document ID and chunk position.
func NodeID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s-%d", documentID, index))).String()
}

// filterChunks drops blank chunks, and chunks shorter than MinChunkLength
// unless only one chunk would remain.
func (p *Processor) filterChunks(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if p.config.MinChunkLength <= 0 || len(out) <= 1 {
		return out
	}

	kept := out[:0:0]
	for _, c := range out {
		if p.length(c) >= p.config.MinChunkLength {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return out[:1]
	}
	return kept
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// cleanText collapses whitespace inside each paragraph and keeps blank-line
// paragraph breaks, which the recursive and markdown splitters rely on.
func (p *Processor) cleanText(text string) string {
	paragraphs := paragraphBreak.Split(text, -1)
	kept := paragraphs[:0]
	for _, para := range paragraphs {
		words := strings.Fields(para)
		if p.stopwords != nil {
			words = p.removeStopwords(words)
		}
		if len(words) > 0 {
			kept = append(kept, strings.Join(words, " "))
		}
	}
	return strings.Join(kept, "\n\n")
}

func (p *Processor) removeStopwords(words []string) []string {
	filtered := words[:0]
	for _, word := range words {
		key := strings.ToLower(strings.Trim(word, `.,;:!?"'()[]`))
		if _, ok := p.stopwords[key]; !ok {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// Common English stopwords
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for",
	"from", "has", "he", "in", "is", "it", "its", "of", "on",
	"that", "the", "to", "was", "were", "will", "with",
}
