package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdvlabs/campusbot/pkg/agent"
	"github.com/sdvlabs/campusbot/pkg/llm"
)

type stubAgent struct {
	name     string
	response string
	queries  []string
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Handle(_ context.Context, input string) (string, error) {
	s.queries = append(s.queries, input)
	return s.response, nil
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		input  string
		intent string
	}{
		{"Quelles sont les formations proposées ?", agent.IntentWebInfo},
		{"Comment se passe l'admission au campus de Paris ?", agent.IntentWebInfo},
		{"Où trouver le règlement intérieur ?", agent.IntentDocumentation},
		{"Avez-vous une brochure PDF ?", agent.IntentDocumentation},
		{"Je suis intéressé, comment postuler ?", agent.IntentContact},
		{"Nous cherchons un partenariat entreprise", agent.IntentContact},
		{"Bonjour !", agent.IntentGeneral},
		{"xyzzy", agent.IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.intent, agent.DetectIntent(tt.input))
		})
	}
}

func TestRouteToAgent(t *testing.T) {
	assert.Equal(t, agent.WebAgentName, agent.RouteToAgent(agent.IntentWebInfo))
	assert.Equal(t, agent.DocAgentName, agent.RouteToAgent(agent.IntentDocumentation))
	assert.Equal(t, agent.FormAgentName, agent.RouteToAgent(agent.IntentContact))
	assert.Equal(t, agent.MainAgentName, agent.RouteToAgent(agent.IntentGeneral))
	assert.Equal(t, agent.MainAgentName, agent.RouteToAgent("unknown"))
}

func TestRouterDispatch(t *testing.T) {
	web := &stubAgent{name: agent.WebAgentName, response: "réponse web"}
	doc := &stubAgent{name: agent.DocAgentName, response: "réponse doc"}
	form := agent.NewFormAgent(&memoryWriter{})

	router := agent.NewRouter(agent.RouterConfig{
		Web:  web,
		Doc:  doc,
		Form: form,
	})

	ctx := context.Background()

	reply, err := router.Route(ctx, "Parlez-moi des formations")
	require.NoError(t, err)
	assert.Equal(t, agent.IntentWebInfo, reply.Intent)
	assert.Equal(t, agent.WebAgentName, reply.TargetAgent)
	assert.Equal(t, "réponse web", reply.Response)
	assert.True(t, reply.NeedsFollowup)
	assert.Len(t, web.queries, 1)

	reply, err = router.Route(ctx, "Je cherche la brochure")
	require.NoError(t, err)
	assert.Equal(t, agent.DocAgentName, reply.TargetAgent)
	assert.Equal(t, "réponse doc", reply.Response)
	assert.Len(t, doc.queries, 1)
}

type recordedMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type recordedRequest struct {
	Stream   bool              `json:"stream"`
	Messages []recordedMessage `json:"messages"`
}

// newFakeModelServer records every chat completion request and answers a
// canned response, server-sent events when streaming is requested.
func newFakeModelServer(t *testing.T, requests *[]recordedRequest) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		*requests = append(*requests, req)
		mu.Unlock()

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Avec plaisir\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Bien sûr"},"finish_reason":"stop"}]}`)
	}))
}

func TestRouterStreamKeepsHistory(t *testing.T) {
	var requests []recordedRequest
	ts := newFakeModelServer(t, &requests)
	defer ts.Close()

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Endpoint:   ts.URL,
		APIKey:     "test-key",
		Deployment: "gpt-4o",
	})
	require.NoError(t, err)

	router := agent.NewRouter(agent.RouterConfig{
		Chat: chat,
		Form: agent.NewFormAgent(&memoryWriter{}),
	})

	ctx := context.Background()

	reply, err := router.Route(ctx, "Peux-tu m'expliquer le fonctionnement ?")
	require.NoError(t, err)
	assert.Equal(t, "Bien sûr", reply.Response)

	// the streamed turn must carry the first exchange
	_, stream, err := router.RouteStream(ctx, "Peux-tu développer ?")
	require.NoError(t, err)

	var full strings.Builder
	for chunk := range stream {
		full.WriteString(chunk)
	}
	assert.Equal(t, "Avec plaisir", full.String())

	require.Len(t, requests, 2)
	require.True(t, requests[1].Stream)

	var roles []string
	for _, msg := range requests[1].Messages {
		roles = append(roles, msg.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Contains(t, string(requests[1].Messages[1].Content), "fonctionnement")
	assert.Contains(t, string(requests[1].Messages[2].Content), "Bien sûr")

	// clearing drops the accumulated turns
	router.ClearHistory()
	_, stream, err = router.RouteStream(ctx, "On reprend à zéro ?")
	require.NoError(t, err)
	for range stream {
	}

	require.Len(t, requests, 3)
	assert.Len(t, requests[2].Messages, 2)
}

func TestRouterFormSessionCapturesMessages(t *testing.T) {
	web := &stubAgent{name: agent.WebAgentName, response: "réponse web"}
	doc := &stubAgent{name: agent.DocAgentName, response: "réponse doc"}
	form := agent.NewFormAgent(&memoryWriter{})

	router := agent.NewRouter(agent.RouterConfig{
		Web:  web,
		Doc:  doc,
		Form: form,
	})

	ctx := context.Background()

	// contact intent opens the form session
	reply, err := router.Route(ctx, "Je suis intéressé par une candidature")
	require.NoError(t, err)
	assert.Equal(t, agent.FormAgentName, reply.TargetAgent)
	assert.Contains(t, reply.Response, "nom de famille")

	// while the session runs, even web keywords stay in the form
	reply, err = router.Route(ctx, "Dupont")
	require.NoError(t, err)
	assert.Equal(t, agent.FormAgentName, reply.TargetAgent)
	assert.True(t, reply.NeedsFollowup)
	assert.Empty(t, web.queries)

	for _, input := range []string{"Marie", "0612345678", "marie@example.com"} {
		reply, err = router.Route(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, agent.FormAgentName, reply.TargetAgent)
	}

	assert.True(t, form.IsComplete())
	assert.False(t, reply.NeedsFollowup)

	// once completed, routing resumes normally
	reply, err = router.Route(ctx, "Parlez-moi des formations")
	require.NoError(t, err)
	assert.Equal(t, agent.WebAgentName, reply.TargetAgent)
	assert.Len(t, web.queries, 1)
}
