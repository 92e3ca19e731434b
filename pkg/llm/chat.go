package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sdvlabs/campusbot/internal/models"
)

// ChatConfig represents the configuration for a chat engine. Deployment is
// the Azure OpenAI deployment name, used in place of a model name.
type ChatConfig struct {
	Endpoint        string
	APIKey          string
	APIVersion      string
	Deployment      string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine against Azure OpenAI.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("azure api key is required")
	}
	if config.Deployment == "" {
		return nil, fmt.Errorf("azure deployment name is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.APIVersion == "" {
		config.APIVersion = "2024-02-01"
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "Tu es un assistant virtuel de l'école Sup de Vinci. Réponds de manière accueillante et professionnelle."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Documents :\n%s\n\nQuestion : %s"
	}

	llm, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithBaseURL(config.Endpoint),
		openai.WithToken(config.APIKey),
		openai.WithAPIVersion(config.APIVersion),
		openai.WithModel(config.Deployment),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// Chat generates a response based on the query and context documents.
func (ce *ChatEngine) Chat(ctx context.Context, query string, docs []models.Document) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.buildPrompt(query, docs)),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat error: empty response")
	}

	return response.Choices[0].Content, nil
}

// ChatWithHistory generates a response from the recent conversation turns,
// without retrieved documents. Used for the general intent.
func (ce *ChatEngine) ChatWithHistory(ctx context.Context, query string, history []models.ChatMessage) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
	}

	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}

	if len(history) == 0 || history[len(history)-1].Content != query {
		content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, query))
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat error: empty response")
	}

	return response.Choices[0].Content, nil
}

// ChatStream generates a stream of response chunks based on the query and
// context documents. The channel is closed once the model is done.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, docs []models.Document) (<-chan string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.buildPrompt(query, docs)),
	}

	return ce.stream(ctx, content), nil
}

// ChatStreamWithHistory is the streaming counterpart of ChatWithHistory:
// the recent conversation turns are sent along with the query so the model
// keeps its context across a session.
func (ce *ChatEngine) ChatStreamWithHistory(ctx context.Context, query string, history []models.ChatMessage) (<-chan string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
	}

	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}

	if len(history) == 0 || history[len(history)-1].Content != query {
		content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, query))
	}

	return ce.stream(ctx, content), nil
}

func (ce *ChatEngine) stream(ctx context.Context, content []llms.MessageContent) <-chan string {
	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		_, err := ce.llm.GenerateContent(ctx, content,
			llms.WithTemperature(ce.config.Temperature),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case resultChan <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
		}
	}()

	return resultChan
}

func (ce *ChatEngine) buildPrompt(query string, docs []models.Document) string {
	if len(docs) == 0 {
		return query
	}

	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", doc.URL, doc.Content))
	}

	return fmt.Sprintf(ce.config.ContextTemplate, contextBuilder.String(), query)
}

// FormatSources formats the retrieved document URLs for citation.
func FormatSources(docs []models.Document) string {
	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		if doc.URL != "" && !seen[doc.URL] {
			sources = append(sources, doc.URL)
			seen[doc.URL] = true
		}
	}

	if len(sources) == 0 {
		return ""
	}

	return fmt.Sprintf("\nSources :\n%s", strings.Join(sources, "\n"))
}
