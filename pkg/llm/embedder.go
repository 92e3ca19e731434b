package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig configures the embedding client. Model is the Azure
// deployment of the embedding model.
type EmbedderConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      string
}

// Embedder creates embeddings through the Azure OpenAI embeddings endpoint.
type Embedder struct {
	config EmbedderConfig
	llm    *openai.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("azure api key is required")
	}
	if config.Model == "" {
		config.Model = "text-embedding-ada-002"
	}
	if config.APIVersion == "" {
		config.APIVersion = "2024-02-01"
	}

	emb, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithBaseURL(config.Endpoint),
		openai.WithToken(config.APIKey),
		openai.WithAPIVersion(config.APIVersion),
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config: config,
		llm:    emb,
	}, nil
}

// CreateEmbedding embeds a batch of texts, one vector per input.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	return embeddings, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return embeddings[0], nil
}

// FlattenEmbeddings concatenates a batch of vectors into one slice.
func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
