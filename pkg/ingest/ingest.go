package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/internal/types"
)

// Pipeline chunks documents and stores them in one collection, in batches.
type Pipeline struct {
	Processor  types.Processor
	Store      types.VectorStore
	Collection string
	BatchSize  int
	OnBatch    func(stored int)
}

// Run processes and stores the documents, returning the number of chunks
// written.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) (int, error) {
	batchSize := p.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}

	processed, err := p.Processor.Process(docs)
	if err != nil {
		return 0, fmt.Errorf("failed to process documents: %w", err)
	}

	chunks := 0
	for i := 0; i < len(processed); i += batchSize {
		end := i + batchSize
		if end > len(processed) {
			end = len(processed)
		}
		batch := processed[i:end]

		if err := p.Store.Store(ctx, p.Collection, batch); err != nil {
			return chunks, fmt.Errorf("failed to store batch: %w", err)
		}

		stored := 0
		for _, doc := range batch {
			stored += len(doc.Chunks)
		}
		chunks += stored

		if p.OnBatch != nil {
			p.OnBatch(stored)
		}
	}

	return chunks, nil
}

// LoadDirectory reads every .md and .txt file in dir into a document, one
// per file. Used to ingest the documentation set.
func LoadDirectory(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var docs []models.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".md" && ext != ".txt" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		docs = append(docs, models.Document{
			ID:      uuid.NewString(),
			URL:     name,
			Title:   strings.TrimSuffix(name, ext),
			Content: string(data),
			Metadata: map[string]interface{}{
				"source": name,
			},
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no .md or .txt files found in %s", dir)
	}

	return docs, nil
}
