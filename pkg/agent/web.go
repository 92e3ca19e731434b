package agent

import (
	"context"
	"fmt"

	"github.com/sdvlabs/campusbot/internal/types"
	"github.com/sdvlabs/campusbot/pkg/llm"
)

const webSystemTemplate = `Tu es un assistant intelligent spécialisé dans les formations de Sup de Vinci, une école d'informatique. Tu réponds comme si tu faisais partie de l'équipe pédagogique.

Part du principe que tu t'adresses à un étudiant ou un futur étudiant de Sup de Vinci. Dans le cas où il te précise un autre profil (entreprise, demandeur d'emploi, etc.), adapte toi à ce profil.

Ta mission est de fournir des réponses précises, structurées et concises à partir des documents fournis, même si les informations sont dispersées.

Si la question porte sur les formations, base-toi uniquement sur les documents, reformule les informations de façon claire et synthétique. Ne retranscris pas les documents mot à mot.

Ne réponds jamais que tu n'as pas d'informations. Analyse les mots clés de la question, trouve les passages correspondants dans les documents et construis une réponse cohérente. Si les informations sont incomplètes, exploite ce qui est pertinent sans inventer.

Si la question est trop spécifique (cas personnel ou individuel), indique que tu ne peux pas répondre et oriente vers le service concerné.

Si elle n'a aucun lien avec Sup de Vinci, indique poliment que tu n'es pas en mesure de répondre.

Réponds concrètement et sois direct. Réponses limitées à 10 lignes maximum.`

// WebAgent answers questions about the school website through retrieval
// over the scraped pages collection.
type WebAgent struct {
	config WebAgentConfig
	chat   *llm.ChatEngine
}

type WebAgentConfig struct {
	Store       types.VectorStore
	Embedder    types.Embedder
	Collection  string
	SearchLimit int

	// Azure connection, shared with the other agents
	LLM types.LLMConfig
}

func NewWebAgent(config WebAgentConfig) (*WebAgent, error) {
	if config.Collection == "" {
		config.Collection = "web_pages"
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Endpoint:       config.LLM.Endpoint,
		APIKey:         config.LLM.APIKey,
		APIVersion:     config.LLM.APIVersion,
		Deployment:     config.LLM.Deployment,
		Temperature:    0,
		MaxTokens:      config.LLM.MaxTokens,
		SystemTemplate: webSystemTemplate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web agent: %w", err)
	}

	return &WebAgent{
		config: config,
		chat:   chat,
	}, nil
}

func (a *WebAgent) Name() string { return WebAgentName }

// Handle embeds the question, retrieves the closest page chunks and asks
// the model to answer from them.
func (a *WebAgent) Handle(ctx context.Context, input string) (string, error) {
	embedding, err := a.config.Embedder.EmbedQuery(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	docs, err := a.config.Store.Query(ctx, a.config.Collection, embedding, a.config.SearchLimit)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", a.config.Collection, err)
	}

	return a.chat.Chat(ctx, input, docs)
}
