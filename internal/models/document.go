package models

// Document is a single page or file pulled into a knowledge collection.
type Document struct {
	ID         string
	URL        string
	Title      string
	Content    string
	Collection string
	Metadata   map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks    []string
	Embedding [][]float32
}
