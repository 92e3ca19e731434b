package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: "Azure OpenAI endpoint is required",
		})
	} else if _, err := url.Parse(c.LLM.Endpoint); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: "invalid Azure OpenAI endpoint",
		})
	}

	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "Azure OpenAI API key is required",
		})
	}

	if c.LLM.Deployment == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.deployment",
			Message: "Azure deployment name is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.MaxPages < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_pages",
			Message: "max_pages must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate chunking profiles
	if c.Web.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "web.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Web.ChunkOverlap < 0 || c.Web.ChunkOverlap >= c.Web.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "web.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Docs.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "docs.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Docs.ChunkOverlap < 0 || c.Docs.ChunkOverlap >= c.Docs.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "docs.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
