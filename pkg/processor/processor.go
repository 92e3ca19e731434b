package processor

import (
	"strings"

	"github.com/sdvlabs/campusbot/internal/models"
)

type ProcessorConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	MinChunkLength     int
	RemoveStopwords    bool
	CustomStopwords    []string
	PreserveLineBreaks bool
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		cleanContent := p.cleanText(doc.Content)

		chunks := p.splitIntoChunks(cleanContent)

		processedDoc := models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		}
		processed = append(processed, processedDoc)
	}

	return processed, nil
}

func (p *Processor) cleanText(text string) string {
	if p.config.PreserveLineBreaks {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		text = strings.Join(lines, "\n")
	} else {
		text = strings.Join(strings.Fields(text), " ")
	}

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	// Split by sentences first so chunks end on sentence boundaries
	sentences := p.splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		// If adding this sentence would exceed chunk size
		if currentChunk.Len()+len(sentence) > p.config.ChunkSize {
			if currentChunk.Len() >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Start new chunk with overlap
			if p.config.ChunkOverlap > 0 && currentChunk.Len() > p.config.ChunkOverlap {
				text := currentChunk.String()
				lastPart := text[len(text)-p.config.ChunkOverlap:]
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	// Add the last chunk if it meets minimum length
	if currentChunk.Len() >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func (p *Processor) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

func (p *Processor) removeStopwords(text string) string {
	words := strings.Fields(text)
	var filtered []string

	stopwords := make(map[string]bool)
	for _, w := range getStopwords() {
		stopwords[w] = true
	}
	for _, w := range p.config.CustomStopwords {
		stopwords[strings.ToLower(w)] = true
	}

	for _, word := range words {
		if !stopwords[strings.ToLower(word)] {
			filtered = append(filtered, word)
		}
	}

	return strings.Join(filtered, " ")
}

// Common French stopwords, matching the language of the scraped site.
func getStopwords() []string {
	return []string{
		"le", "la", "les", "un", "une", "des", "de", "du", "et", "ou",
		"est", "sont", "dans", "pour", "par", "sur", "avec", "au", "aux",
		"ce", "cette", "ces", "que", "qui", "ne", "pas", "plus",
	}
}
