package processor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	config := processor.ProcessorConfig{
		ChunkSize:      80,
		ChunkOverlap:   10,
		MinChunkLength: 20,
	}
	p := processor.NewWithConfig(config)

	documents := []models.Document{
		{Content: "Sup de Vinci est une école d'informatique. Elle propose des formations en alternance. Les campus sont situés en région parisienne. Les admissions ouvrent chaque année."},
	}

	processedDocs, err := p.Process(documents)

	require.NoError(t, err)
	require.Len(t, processedDocs, 1)
	assert.NotEmpty(t, processedDocs[0].Chunks)
	assert.Contains(t, processedDocs[0].Chunks[0], "Sup de Vinci")

	// a chunk may spill past ChunkSize by at most one sentence
	for _, chunk := range processedDocs[0].Chunks {
		assert.Less(t, len(chunk), 2*config.ChunkSize)
	}
}

func TestProcessor_WhitespaceNormalization(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      200,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})

	docs := []models.Document{
		{Content: "Une   phrase avec   beaucoup    d'espaces. Une seconde phrase propre."},
	}

	processed, err := p.Process(docs)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.NotEmpty(t, processed[0].Chunks)

	assert.NotContains(t, processed[0].Chunks[0], "  ")
}

func TestProcessor_RemoveStopwords(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:       200,
		ChunkOverlap:    10,
		MinChunkLength:  5,
		RemoveStopwords: true,
		CustomStopwords: []string{"campus"},
	})

	docs := []models.Document{
		{Content: "Les formations sur le campus sont accessibles pour les étudiants."},
	}

	processed, err := p.Process(docs)
	require.NoError(t, err)
	require.NotEmpty(t, processed[0].Chunks)

	joined := strings.Join(processed[0].Chunks, " ")
	assert.NotContains(t, strings.Fields(joined), "campus")
	assert.NotContains(t, strings.Fields(joined), "les")
	assert.Contains(t, joined, "formations")
}

func TestProcessor_ShortContentDropped(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      100,
		ChunkOverlap:   10,
		MinChunkLength: 50,
	})

	docs := []models.Document{{Content: "Trop court."}}

	processed, err := p.Process(docs)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Empty(t, processed[0].Chunks)
}
