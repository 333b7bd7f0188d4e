package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/pkg/llm"
)

func TestHuggingFaceEmbedder(t *testing.T) {
	var batches [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))

		var body struct {
			Inputs []string `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batches = append(batches, body.Inputs)

		vectors := make([][]float32, len(body.Inputs))
		for i, in := range body.Inputs {
			vectors[i] = []float32{float32(len(in)), 1, 0}
		}
		assert.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	defer server.Close()

	emb, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  llm.ProviderHuggingFace,
		Model:     "sentence-transformers/all-MiniLM-L6-v2",
		Token:     "hf-token",
		URL:       server.URL,
		BatchSize: 2,
	})
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{3, 1, 0}, vectors[2])
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, batches)

	query, err := emb.EmbedQuery(context.Background(), "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, float32(len("line one line two")), query[0])
}

func TestAzureEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/text-embedding-3-small/embeddings", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))

		var body struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		parts := make([]string, len(body.Input))
		for i := range body.Input {
			parts[i] = fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,0.5]}`, i, i)
		}
		fmt.Fprintf(w, `{"object":"list","data":[%s]}`, strings.Join(parts, ","))
	}))
	defer server.Close()

	emb, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:   llm.ProviderAzure,
		Deployment: "text-embedding-3-small",
		APIKey:     "secret",
		Endpoint:   server.URL,
		APIVersion: "2024-08-01-preview",
	})
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}}, vectors)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := llm.NewEmbedder(llm.EmbedderConfig{Provider: "cohere"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}
