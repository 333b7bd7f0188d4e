package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/llm"
	"github.com/xhad/docqa/pkg/loader"
)

// vocabEmbedder maps text onto counts of a fixed vocabulary.
type vocabEmbedder struct{}

var vocab = []string{"go", "gopher", "pasta", "sauce"}

func (vocabEmbedder) vector(text string) []float32 {
	v := make([]float32, len(vocab)+1)
	v[len(vocab)] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!")
		for i, term := range vocab {
			if w == term {
				v[i]++
			}
		}
	}
	return v
}

func (e vocabEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e vocabEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func dataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestNew_AnswersFromCorpus(t *testing.T) {
	dir := dataDir(t, map[string]string{
		"go.txt":    "The gopher is the Go mascot.",
		"pasta.txt": "Pasta needs a good sauce.",
	})
	cfg := testConfig(t, "data:\n  dir: "+dir+"\nquery:\n  similarity_top_k: 1\n")

	var progress []int
	a, err := New(context.Background(), cfg, nil, Options{
		Chat:       llm.NewChatEngine(fake.NewFakeLLM([]string{"A gopher."}), 0.1, 0),
		Embedder:   vocabEmbedder{},
		OnProgress: func(done, _ int) { progress = append(progress, done) },
	})
	require.NoError(t, err)
	defer a.Close()

	count, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int{2}, progress)

	resp, err := a.Engine().Query(context.Background(), "Who is the gopher?")
	require.NoError(t, err)
	assert.Equal(t, "A gopher.", resp.String())
	require.Len(t, resp.SourceNodes, 1)
	assert.Equal(t, "The gopher is the Go mascot.", resp.SourceNodes[0].Text)
}

func TestNew_MissingData(t *testing.T) {
	cfg := testConfig(t, "data:\n  dir: "+filepath.Join(t.TempDir(), "nope")+"\n")

	_, err := New(context.Background(), cfg, nil, Options{
		Chat:     llm.NewChatEngine(fake.NewFakeLLM([]string{"x"}), 0.1, 0),
		Embedder: vocabEmbedder{},
	})
	assert.ErrorIs(t, err, loader.ErrDirNotFound)
}

func TestNew_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := dataDir(t, map[string]string{"go.txt": "Go has a gopher."})
	cfg := testConfig(t, "data:\n  dir: "+dir+"\ncache:\n  enabled: true\n  redis_url: redis://"+mr.Addr()+"\n")

	a, err := New(context.Background(), cfg, nil, Options{
		Chat:     llm.NewChatEngine(fake.NewFakeLLM([]string{"Cached gopher."}), 0.1, 0),
		Embedder: vocabEmbedder{},
	})
	require.NoError(t, err)

	resp, err := a.Engine().Query(context.Background(), "gopher?")
	require.NoError(t, err)
	assert.Equal(t, "Cached gopher.", resp.Answer)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, a.Close())
}

func TestNew_RebuildClearsCachedAnswers(t *testing.T) {
	mr := miniredis.RunT(t)
	ask := func(corpus, reply string) string {
		t.Helper()
		dir := dataDir(t, map[string]string{"gopher.txt": corpus})
		cfg := testConfig(t, "data:\n  dir: "+dir+"\nindex:\n  rebuild: true\ncache:\n  enabled: true\n  redis_url: redis://"+mr.Addr()+"\n")

		a, err := New(context.Background(), cfg, nil, Options{
			Chat:     llm.NewChatEngine(fake.NewFakeLLM([]string{reply}), 0.1, 0),
			Embedder: vocabEmbedder{},
		})
		require.NoError(t, err)
		defer a.Close()

		resp, err := a.Engine().Query(context.Background(), "What color is the gopher?")
		require.NoError(t, err)
		require.NotEmpty(t, resp.SourceNodes, "answer must come from the new index")
		return resp.Answer
	}

	assert.Equal(t, "Blue.", ask("The gopher is blue.", "Blue."))
	assert.Equal(t, "Green.", ask("The gopher is green.", "Green."))
}

func TestEmbedderConfig(t *testing.T) {
	cfg := testConfig(t, `
llm:
  api_key: k
  endpoint: https://example.openai.azure.com
embedder:
  provider: azure
  deployment: text-embedding-3-small
`)
	ec := embedderConfig(cfg)
	assert.Equal(t, "k", ec.APIKey)
	assert.Equal(t, "https://example.openai.azure.com", ec.Endpoint)
	assert.Equal(t, "2024-08-01-preview", ec.APIVersion)
	assert.Equal(t, "text-embedding-3-small", ec.Deployment)

	cfg = testConfig(t, "llm:\n  provider: ollama\nembedder:\n  provider: ollama\n  model: nomic-embed-text\n")
	assert.Equal(t, "http://localhost:11434", embedderConfig(cfg).URL)

	cc := chatConfig(cfg)
	assert.Equal(t, "ollama", cc.Provider)
	assert.Equal(t, 0, cc.MaxTokens)
}
