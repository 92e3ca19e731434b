package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/pkg/ingest"
	"github.com/sdvlabs/campusbot/pkg/processor"
)

type memoryStore struct {
	calls [][]models.ProcessedDocument
}

func (s *memoryStore) Store(_ context.Context, _ string, docs []models.ProcessedDocument) error {
	s.calls = append(s.calls, docs)
	return nil
}

func (s *memoryStore) Query(_ context.Context, _ string, _ []float32, _ int) ([]models.Document, error) {
	return nil, nil
}

func (s *memoryStore) Close() {}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formations.md"), []byte("# Formations\n\nBachelor et Mastère."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "campus.txt"), []byte("Le campus de Bordeaux."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brochure.pdf"), []byte("%PDF"), 0o644))

	docs, err := ingest.LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	names := []string{docs[0].URL, docs[1].URL}
	assert.Contains(t, names, "formations.md")
	assert.Contains(t, names, "campus.txt")
	for _, doc := range docs {
		assert.NotEmpty(t, doc.ID)
		assert.NotEmpty(t, doc.Content)
		assert.Equal(t, doc.URL, doc.Metadata["source"])
	}
}

func TestLoadDirectoryEmpty(t *testing.T) {
	_, err := ingest.LoadDirectory(t.TempDir())
	assert.Error(t, err)
}

func TestPipelineRun(t *testing.T) {
	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    200,
		ChunkOverlap: 20,
	})

	store := &memoryStore{}
	batches := 0
	pipeline := &ingest.Pipeline{
		Processor:  &proc,
		Store:      store,
		Collection: "documents",
		BatchSize:  2,
		OnBatch:    func(int) { batches++ },
	}

	docs := []models.Document{
		{ID: "a", URL: "a.md", Content: "Le Bachelor Informatique forme des développeurs en trois ans. Les cours couvrent la programmation et les bases de données."},
		{ID: "b", URL: "b.md", Content: "Le Mastère Cybersécurité prépare aux métiers de la sécurité des systèmes d'information sur deux années en alternance."},
		{ID: "c", URL: "c.md", Content: "Le campus accueille les étudiants du lundi au vendredi et propose des espaces de travail collaboratif ouverts en continu."},
	}

	chunks, err := pipeline.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Greater(t, chunks, 0)
	assert.Len(t, store.calls, 2)
	assert.Equal(t, 2, batches)
}
