package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSetupOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: key
  endpoint: https://example.openai.azure.com
embedder:
  token: hf_token
`)
	cfg, logger, err := setup(&flags{configPath: path, dataDir: "docs", logLevel: "debug"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, "docs", cfg.Data.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSetupInvalid(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: nope\n")

	_, _, err := setup(&flags{configPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestRootFlags(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"config", "data-dir", "log-level", "stream"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "ask", "index"}, names)
}
