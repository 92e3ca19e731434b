package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/internal/types"
	"github.com/sdvlabs/campusbot/pkg/llm"
)

// Intents understood by the router.
const (
	IntentWebInfo       = "web_info"
	IntentDocumentation = "documentation"
	IntentContact       = "contact"
	IntentGeneral       = "general"
)

// Agent names, one per intent category.
const (
	MainAgentName = "main_agent"
	WebAgentName  = "web_agent"
	DocAgentName  = "doc_agent"
	FormAgentName = "form_agent"
)

// historyWindow is how many recent turns the general agent feeds back to
// the model.
const historyWindow = 6

var intentKeywords = map[string][]string{
	IntentWebInfo: {
		"admission", "formation", "campus", "programme",
		"école", "étudiant", "cours", "alternance",
	},
	IntentDocumentation: {
		"règlement", "brochure", "pdf", "document", "guide", "procédure",
	},
	IntentContact: {
		"contact", "intéressé", "candidature", "postuler",
		"entreprise", "stage", "partenariat", "inscription",
	},
	IntentGeneral: {
		"bonjour", "salut", "aide", "information", "question",
	},
}

var routingMap = map[string]string{
	IntentWebInfo:       WebAgentName,
	IntentDocumentation: DocAgentName,
	IntentContact:       FormAgentName,
	IntentGeneral:       MainAgentName,
}

// intentOrder keeps detection deterministic when keywords from several
// categories appear in one message.
var intentOrder = []string{IntentWebInfo, IntentDocumentation, IntentContact, IntentGeneral}

// DetectIntent classifies a user message by keyword match, falling back to
// the general intent.
func DetectIntent(input string) string {
	lower := strings.ToLower(input)

	for _, intent := range intentOrder {
		for _, keyword := range intentKeywords[intent] {
			if strings.Contains(lower, keyword) {
				return intent
			}
		}
	}

	return IntentGeneral
}

// RouteToAgent maps an intent to the agent that handles it.
func RouteToAgent(intent string) string {
	if agent, ok := routingMap[intent]; ok {
		return agent
	}
	return MainAgentName
}

// Router dispatches user messages to the specialized agents and answers
// general messages itself through the chat engine.
type Router struct {
	chat *llm.ChatEngine
	web  types.Agent
	doc  types.Agent
	form *FormAgent

	mu      sync.Mutex
	history []models.ChatMessage
}

type RouterConfig struct {
	Chat *llm.ChatEngine
	Web  types.Agent
	Doc  types.Agent
	Form *FormAgent
}

func NewRouter(config RouterConfig) *Router {
	return &Router{
		chat: config.Chat,
		web:  config.Web,
		doc:  config.Doc,
		form: config.Form,
	}
}

// Route generates a reply for the user message. An in-progress form
// session captures every message until it completes, whatever the intent.
func (r *Router) Route(ctx context.Context, input string) (models.AgentReply, error) {
	if r.form != nil && r.form.InProgress() {
		response, err := r.form.ProcessInput(input)
		if err != nil {
			return models.AgentReply{}, err
		}
		return models.AgentReply{
			Response:      response,
			Intent:        IntentContact,
			TargetAgent:   FormAgentName,
			NeedsFollowup: r.form.InProgress(),
		}, nil
	}

	intent := DetectIntent(input)
	target := RouteToAgent(intent)

	r.appendHistory("user", input)

	var (
		response string
		err      error
	)

	switch target {
	case WebAgentName:
		response, err = r.web.Handle(ctx, input)
	case DocAgentName:
		response, err = r.doc.Handle(ctx, input)
	case FormAgentName:
		response, err = r.form.ProcessInput(input)
	default:
		response, err = r.chat.ChatWithHistory(ctx, input, r.recentHistory())
	}
	if err != nil {
		return models.AgentReply{}, err
	}

	r.appendHistory("assistant", response)

	return models.AgentReply{
		Response:      response,
		Intent:        intent,
		TargetAgent:   target,
		NeedsFollowup: target != MainAgentName,
	}, nil
}

// RouteStream behaves like Route but delivers the general agent's reply as
// a stream of chunks. Specialized agents still answer in one piece, sent as
// a single chunk; for those the reply's Response field is also set.
func (r *Router) RouteStream(ctx context.Context, input string) (models.AgentReply, <-chan string, error) {
	inForm := r.form != nil && r.form.InProgress()
	if inForm || RouteToAgent(DetectIntent(input)) != MainAgentName {
		reply, err := r.Route(ctx, input)
		if err != nil {
			return models.AgentReply{}, nil, err
		}
		out := make(chan string, 1)
		out <- reply.Response
		close(out)
		return reply, out, nil
	}

	r.appendHistory("user", input)

	stream, err := r.chat.ChatStreamWithHistory(ctx, input, r.recentHistory())
	if err != nil {
		return models.AgentReply{}, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range stream {
			full.WriteString(chunk)
			out <- chunk
		}
		r.appendHistory("assistant", full.String())
	}()

	return models.AgentReply{
		Intent:      IntentGeneral,
		TargetAgent: MainAgentName,
	}, out, nil
}

// Form returns the form agent so callers can inspect the collection state.
func (r *Router) Form() *FormAgent {
	return r.form
}

// ClearHistory drops the conversation history of the general agent.
func (r *Router) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

func (r *Router) appendHistory(role, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, models.ChatMessage{Role: role, Content: content})
}

func (r *Router) recentHistory() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) <= historyWindow {
		return append([]models.ChatMessage(nil), r.history...)
	}
	return append([]models.ChatMessage(nil), r.history[len(r.history)-historyWindow:]...)
}
