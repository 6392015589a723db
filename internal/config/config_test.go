package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 8, cfg.RAG.TopK)
	assert.InDelta(t, 0.85, cfg.RAG.QAConfidenceThreshold, 1e-9)
	assert.Equal(t, "Not in policy", cfg.RAG.NotFoundText)
	assert.Equal(t, 120, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 500, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, "bolt", cfg.VectorStore.Driver)
	assert.Equal(t, filepath.Join("./db", "registry.json"), cfg.Registry.Path)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
rag:
  qa_confidence_threshold: 0.7
  chunk_size: 800
llm:
  model: from-file
vector_store:
  dir: /var/lib/policy
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	t.Setenv("QA_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("PERPLEXITY_MODEL", "sonar-pro")
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")
	t.Setenv("SYSTEM_PROMPT", "Only quote the handbook.")
	t.Setenv("CHROMA_DB_DIR", dir)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.RAG.QAConfidenceThreshold, 1e-9)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, "sonar-pro", cfg.LLM.Model)
	assert.Equal(t, "pplx-test", cfg.LLM.APIKey)
	assert.Equal(t, "Only quote the handbook.", cfg.RAG.SystemPrompt)
	assert.Equal(t, dir, cfg.VectorStore.Dir)
	assert.Equal(t, filepath.Join(dir, "registry.json"), cfg.Registry.Path)
}
