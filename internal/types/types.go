package types

import (
	"context"
	"time"

	"github.com/sdvlabs/campusbot/internal/models"
)

// Core interfaces
type VectorStore interface {
	Store(ctx context.Context, collection string, docs []models.ProcessedDocument) error
	Query(ctx context.Context, collection string, embedding []float32, limit int) ([]models.Document, error)
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}

// Agent handles one category of user intent.
type Agent interface {
	Name() string
	Handle(ctx context.Context, input string) (string, error)
}

// LeadWriter persists completed leads and reports on them.
type LeadWriter interface {
	Append(lead models.Lead) error
	Stats() (models.LeadStats, error)
}

type ProcessorConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	MinChunkLength     int
	RemoveStopwords    bool
	CustomStopwords    []string
	PreserveLineBreaks bool
}

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	MaxPages          int
	RateLimit         float64
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

type LLMConfig struct {
	Endpoint       string
	APIKey         string
	APIVersion     string
	Deployment     string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
}
