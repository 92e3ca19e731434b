package agent

import (
	"context"
	"fmt"

	"github.com/sdvlabs/campusbot/internal/types"
	"github.com/sdvlabs/campusbot/pkg/llm"
)

const docSystemTemplate = `Tu es un assistant intelligent spécialisé dans les formations de Sup de Vinci, une école d'informatique. Réponds comme si tu faisais partie de l'équipe pédagogique de Sup de Vinci.

Ta mission est de fournir des réponses précises et structurées à partir des documents fournis (règlements, brochures, guides), même si les informations sont dispersées.

Ne te contente pas de retranscrire les documents, mais reformule les réponses de manière claire et concise en récupérant les informations pertinentes.

Si les questions sont trop spécifiques, comme un cas très précis ou une personne en particulier, réponds que tu n'as pas d'informations à ce sujet et oriente vers le service concerné.

Si la question n'a rien à voir avec Sup de Vinci, réponds poliment que tu n'es pas apte à répondre à cette question.

10 lignes maximum. Réponds concrètement et sois direct. Parle factuellement et pas en supposition.`

// DocAgent answers questions about official documentation through
// retrieval over the documents collection. Responses are kept short to
// limit model cost.
type DocAgent struct {
	config DocAgentConfig
	chat   *llm.ChatEngine
}

type DocAgentConfig struct {
	Store       types.VectorStore
	Embedder    types.Embedder
	Collection  string
	SearchLimit int
	MaxTokens   int

	LLM types.LLMConfig
}

func NewDocAgent(config DocAgentConfig) (*DocAgent, error) {
	if config.Collection == "" {
		config.Collection = "documents"
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 4
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Endpoint:       config.LLM.Endpoint,
		APIKey:         config.LLM.APIKey,
		APIVersion:     config.LLM.APIVersion,
		Deployment:     config.LLM.Deployment,
		Temperature:    0,
		MaxTokens:      config.MaxTokens,
		SystemTemplate: docSystemTemplate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize doc agent: %w", err)
	}

	return &DocAgent{
		config: config,
		chat:   chat,
	}, nil
}

func (a *DocAgent) Name() string { return DocAgentName }

func (a *DocAgent) Handle(ctx context.Context, input string) (string, error) {
	embedding, err := a.config.Embedder.EmbedQuery(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	docs, err := a.config.Store.Query(ctx, a.config.Collection, embedding, a.config.SearchLimit)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", a.config.Collection, err)
	}

	answer, err := a.chat.Chat(ctx, input, docs)
	if err != nil {
		return "", err
	}

	if sources := llm.FormatSources(docs); sources != "" {
		answer += "\n" + sources
	}
	return answer, nil
}
