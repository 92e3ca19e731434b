package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sdvlabs/campusbot/internal/types"
	"github.com/sdvlabs/campusbot/pkg/agent"
	"github.com/sdvlabs/campusbot/pkg/ingest"
	"github.com/sdvlabs/campusbot/pkg/scraper"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Message is the JSON frame exchanged over the WebSocket. Outbound types:
// status, progress, stream, response, form, error.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Addr       string
	Streaming  bool
	Collection string
	BatchSize  int

	Router *agent.Router
	Leads  types.LeadWriter

	// Ad hoc ingestion of URLs pasted into the chat.
	Scraper   scraper.ScraperConfig
	Processor types.Processor
	Store     types.VectorStore
}

type WSServer struct {
	config Config
	router *agent.Router
	leads  types.LeadWriter
}

func NewWSServer(config Config) (*WSServer, error) {
	if config.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Collection == "" {
		config.Collection = "web_pages"
	}

	return &WSServer{
		config: config,
		router: config.Router,
		leads:  config.Leads,
	}, nil
}

// Routes builds the HTTP routing table: the WebSocket chat endpoint plus a
// small REST surface for monitoring.
func (s *WSServer) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/leads/stats", s.handleLeadStats).Methods(http.MethodGet)
	return r
}

func (s *WSServer) Start() error {
	log.Printf("Starting WebSocket server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Routes())
}

func (s *WSServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *WSServer) handleLeadStats(w http.ResponseWriter, r *http.Request) {
	if s.leads == nil {
		http.Error(w, "lead collection is not configured", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.leads.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total": stats.Total,
		"today": stats.Today,
	})
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Messages are handled in order: the form session depends on it.
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	if msg.Type == "clear" {
		s.router.ClearHistory()
		if form := s.router.Form(); form != nil {
			form.Reset()
		}
		s.sendMessage(conn, "status", "Conversation réinitialisée.")
		return
	}

	query := msg.Content

	// A pasted URL triggers an ad hoc scrape-and-index run before the
	// conversation continues.
	if url := urlPattern.FindString(query); url != "" && s.config.Store != nil {
		if err := s.ingestURL(ctx, conn, url); err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Échec de l'indexation de %s : %v", url, err))
			return
		}

		if strings.TrimSpace(query) == url {
			return
		}
	}

	if s.config.Streaming {
		reply, stream, err := s.router.RouteStream(ctx, query)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Erreur : %v", err))
			return
		}

		var full strings.Builder
		for chunk := range stream {
			full.WriteString(chunk)
			s.sendMessage(conn, "stream", chunk)
		}

		reply.Response = full.String()
		s.sendReply(conn, reply.Response, reply.Intent, reply.TargetAgent, reply.NeedsFollowup)
		return
	}

	reply, err := s.router.Route(ctx, query)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Erreur : %v", err))
		return
	}

	s.sendReply(conn, reply.Response, reply.Intent, reply.TargetAgent, reply.NeedsFollowup)
}

func (s *WSServer) ingestURL(ctx context.Context, conn *websocket.Conn, url string) error {
	s.sendMessage(conn, "status", fmt.Sprintf("Analyse de %s...", url))

	var scrapedCount int32
	cfg := s.config.Scraper
	cfg.BaseURL = url
	cfg.OnProgress = func(string) {
		count := atomic.AddInt32(&scrapedCount, 1)
		s.sendMessage(conn, "progress", fmt.Sprintf("%d pages analysées", count))
	}

	sc, err := scraper.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	docs, err := sc.Scrape(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to scrape: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no pages found at %s", url)
	}

	pipeline := &ingest.Pipeline{
		Processor:  s.config.Processor,
		Store:      s.config.Store,
		Collection: s.config.Collection,
		BatchSize:  s.config.BatchSize,
	}

	chunks, err := pipeline.Run(ctx, docs)
	if err != nil {
		return err
	}

	s.sendMessage(conn, "status", fmt.Sprintf("%d pages indexées (%d extraits)", len(docs), chunks))
	return nil
}

// sendReply sends the final answer frame with its routing metadata. Replies
// produced by the form agent use the form type so the client can render the
// collection flow.
func (s *WSServer) sendReply(conn *websocket.Conn, response, intent, target string, needsFollowup bool) {
	data := map[string]interface{}{
		"intent":         intent,
		"target_agent":   target,
		"needs_followup": needsFollowup,
	}

	msgType := "response"
	if target == agent.FormAgentName {
		msgType = "form"
		if form := s.router.Form(); form != nil {
			lead := form.CurrentLead()
			data["state"] = string(form.CurrentState())
			data["lead"] = map[string]string{
				"nom":       lead.LastName,
				"prenom":    lead.FirstName,
				"telephone": lead.Phone,
				"email":     lead.Email,
			}
		}
	}

	msg := Message{
		Type:    msgType,
		Content: response,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
