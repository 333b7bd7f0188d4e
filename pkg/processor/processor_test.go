package processor_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/tokenizer"
	"github.com/xhad/docqa/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	config := processor.ProcessorConfig{
		ChunkSize:       50,
		ChunkOverlap:    10,
		RemoveStopwords: true,
		CustomStopwords: []string{"Several"},
		LengthFunc:      utf8.RuneCountInString,
	}
	p, err := processor.NewWithConfig(config)
	require.NoError(t, err)

	documents := []models.Document{
		{
			ID:       "doc-1",
			Source:   "a.txt",
			Content:  "This is a test document. It contains several sentences to demonstrate text processing.",
			Metadata: map[string]interface{}{"file_name": "a.txt"},
		},
		{ID: "doc-2", Source: "b.txt", Content: "  \n\t "},
		{ID: "doc-3", Source: "c.txt", Content: "Short one."},
	}

	nodes, err := p.Process(documents)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, "This test document.", nodes[0].Text)
	assert.NotContains(t, nodes[1].Text, "several")
	assert.Equal(t, "doc-1", nodes[0].DocumentID)
	assert.Equal(t, 1, nodes[1].Index)
	assert.Equal(t, 1, nodes[1].Metadata["chunk_index"])
	assert.Equal(t, "a.txt", nodes[1].Metadata["file_name"])
	assert.Equal(t, "doc-3", nodes[2].DocumentID)

	_, shared := documents[0].Metadata["chunk_index"]
	assert.False(t, shared, "document metadata must not be mutated")

	for _, n := range nodes {
		assert.NotEmpty(t, strings.TrimSpace(n.Text))
		assert.LessOrEqual(t, utf8.RuneCountInString(n.Text), 50)
	}
}

func TestProcessor_StableNodeIDs(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 20, ChunkOverlap: 0, LengthFunc: utf8.RuneCountInString})
	require.NoError(t, err)

	docs := []models.Document{{ID: "doc", Content: "One sentence. Another one."}}
	first, err := p.Process(docs)
	require.NoError(t, err)
	second, err := p.Process(docs)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID)
	assert.Equal(t, processor.NodeID("doc", 1), first[1].ID)
}

func TestProcessor_SentenceOverlap(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 40, ChunkOverlap: 12, LengthFunc: utf8.RuneCountInString})
	require.NoError(t, err)

	nodes, err := p.Process([]models.Document{{
		ID:      "doc",
		Content: "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu.",
	}})
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, "Alpha beta gamma delta.", nodes[0].Text)
	assert.Equal(t, "gamma delta. Epsilon zeta eta theta.", nodes[1].Text)
	assert.Equal(t, "eta theta. Iota kappa lambda mu.", nodes[2].Text)
}

func TestProcessor_MultiByteText(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 3, LengthFunc: utf8.RuneCountInString})
	require.NoError(t, err)

	text := strings.Repeat("日本語のテキスト", 5)
	nodes, err := p.Process([]models.Document{{ID: "jp", Content: text}})
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	var rebuilt strings.Builder
	for _, n := range nodes {
		assert.True(t, utf8.ValidString(n.Text))
		assert.LessOrEqual(t, utf8.RuneCountInString(n.Text), 10)
		rebuilt.WriteString(n.Text)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestProcessor_MinChunkLength(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 30, ChunkOverlap: 0, MinChunkLength: 10, LengthFunc: utf8.RuneCountInString})
	require.NoError(t, err)

	nodes, err := p.Process([]models.Document{
		{ID: "a", Content: "A fairly long first sentence. Ok."},
		{ID: "b", Content: "Tiny."},
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "A fairly long first sentence.", nodes[0].Text)
	assert.Equal(t, "Tiny.", nodes[1].Text)
}

func TestProcessor_Splitters(t *testing.T) {
	content := "# Title\n\nFirst paragraph with some words.\n\nSecond paragraph with more words."

	tests := []struct {
		splitter string
		minNodes int
	}{
		{processor.SplitterRecursive, 2},
		{processor.SplitterMarkdown, 1},
	}

	for _, tt := range tests {
		t.Run(tt.splitter, func(t *testing.T) {
			p, err := processor.NewWithConfig(processor.ProcessorConfig{Splitter: tt.splitter, ChunkSize: 40, ChunkOverlap: 0, LengthFunc: utf8.RuneCountInString})
			require.NoError(t, err)

			nodes, err := p.Process([]models.Document{{ID: "md", Content: content}})
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(nodes), tt.minNodes)
			for _, n := range nodes {
				assert.NotEmpty(t, n.Text)
			}
		})
	}
}

func TestProcessor_TokenMeasuredChunks(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 20, ChunkOverlap: 3})
	require.NoError(t, err)

	count, err := tokenizer.CountFunc("gpt-4o-mini")
	require.NoError(t, err)

	content := strings.Repeat("The gopher digs a tunnel under the garden. ", 6)
	nodes, err := p.Process([]models.Document{{ID: "doc", Content: content}})
	require.NoError(t, err)
	require.Greater(t, len(nodes), 1)

	for _, n := range nodes {
		assert.LessOrEqual(t, count(n.Text), 20)
		// A budget of 20 runes could not hold a whole sentence.
		assert.Greater(t, utf8.RuneCountInString(n.Text), 20)
	}
}

func TestProcessor_TokenSplitter(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		Splitter:     processor.SplitterToken,
		ChunkSize:    8,
		ChunkOverlap: 2,
	})
	require.NoError(t, err)

	count, err := tokenizer.CountFunc("gpt-4o-mini")
	require.NoError(t, err)

	content := "Gophers live in burrows. They eat roots and bulbs. <|endoftext|> is just text here."
	nodes, err := p.Process([]models.Document{{ID: "doc", Content: content}})
	require.NoError(t, err)
	require.Greater(t, len(nodes), 2)

	assert.True(t, strings.HasPrefix(content, nodes[0].Text))
	for _, n := range nodes {
		assert.LessOrEqual(t, count(n.Text), 8)
	}
}

func TestNewWithConfig_Invalid(t *testing.T) {
	_, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)

	_, err = processor.NewWithConfig(processor.ProcessorConfig{Splitter: "paragraph"})
	assert.Error(t, err)
}
