package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdvlabs/campusbot/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Endpoint: "https://example.openai.azure.com",
		APIKey:   "test-key",
		Model:    "text-embedding-ada-002",
	})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestNewEmbedderMissingCredentials(t *testing.T) {
	_, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey: "test-key",
	})
	assert.Error(t, err)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Endpoint: "https://example.openai.azure.com",
	})
	assert.Error(t, err)
}

func TestFlattenEmbeddings(t *testing.T) {
	embeddings := [][]float32{
		{0.1, 0.2},
		{0.3, 0.4},
	}

	flat := llm.FlattenEmbeddings(embeddings)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, flat)

	assert.Nil(t, llm.FlattenEmbeddings(nil))
}
