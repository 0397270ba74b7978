// Package httpapi provides the HTTP surface of the beechat bridge: the
// embedded demo page, the Beefree token proxy, a health check, and the
// browser WebSocket that mirrors the transcript.
package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hivemind-labs/beechat/editor"
	"github.com/hivemind-labs/beechat/model"
	"github.com/hivemind-labs/beechat/session"
)

//go:embed static
var staticFS embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// AuthConfig configures the Beefree token proxy.
type AuthConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	UID          string
}

// Handler provides the HTTP API for the beechat bridge.
type Handler struct {
	controller *session.Controller
	bus        *session.Bus
	hooks      editor.Hooks
	auth       AuthConfig
	httpClient *http.Client
	router     chi.Router
}

// New creates a new HTTP handler.
func New(ctrl *session.Controller, bus *session.Bus, hooks editor.Hooks, auth AuthConfig) *Handler {
	h := &Handler{
		controller: ctrl,
		bus:        bus,
		hooks:      hooks,
		auth:       auth,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	h.router = h.buildRouter()
	return h
}

// Router returns the HTTP router.
func (h *Handler) Router() chi.Router {
	return h.router
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/api/auth/token", h.handleAuthToken)
		r.Get("/api/messages", h.handleGetMessages)
		r.Get("/health", h.handleHealth)
	})

	r.Get("/ws", h.handleBrowserSocket)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static tree missing: %v", err))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(static, "index.html")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "demo page unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})

	return r
}

// --- Handlers ---

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "beechat-bridge",
	})
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.controller.Transcript()
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handleAuthToken proxies the Beefree loginV2 endpoint so the SDK secret
// never reaches the browser.
func (h *Handler) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if h.auth.ClientID == "" || h.auth.ClientSecret == "" {
		writeError(w, http.StatusInternalServerError, "Beefree SDK credentials not configured")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     h.auth.ClientID,
		"client_secret": h.auth.ClientSecret,
		"uid":           h.auth.UID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "building auth payload")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.auth.URL, bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "building auth request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("connecting to auth service: %v", err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadGateway, "reading auth response")
		return
	}
	if resp.StatusCode != http.StatusOK {
		writeError(w, resp.StatusCode, fmt.Sprintf("authenticating with Beefree: %s", body))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// --- Browser socket ---

// browserFrame is one inbound message from the demo page.
type browserFrame struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// transcriptFrame is the initial snapshot pushed to a fresh view.
type transcriptFrame struct {
	Type     string          `json:"type"`
	Messages []model.Message `json:"messages"`
}

// updateFrame mirrors one transcript change to the view.
type updateFrame struct {
	Type    string        `json:"type"`
	Kind    string        `json:"kind"`
	Message model.Message `json:"message"`
}

// handleBrowserSocket attaches a demo-page view: it pushes the current
// transcript, then mirrors every update, while accepting chat submissions
// and editor-state notifications from the page.
func (h *Handler) handleBrowserSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Browser socket: upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(1 << 20)

	updates := h.bus.Subscribe()
	defer h.bus.Unsubscribe(updates)

	// Reads never write to the socket, so they can run concurrently with
	// the single writer below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame browserFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			h.dispatchBrowserFrame(frame)
		}
	}()

	snapshot := transcriptFrame{Type: "transcript", Messages: h.controller.Transcript()}
	if snapshot.Messages == nil {
		snapshot.Messages = []model.Message{}
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			frame := updateFrame{Type: "message_update", Kind: string(u.Kind), Message: u.Message}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func (h *Handler) dispatchBrowserFrame(frame browserFrame) {
	switch frame.Type {
	case model.EventChat:
		if err := h.controller.SubmitChat(frame.Message); err != nil {
			log.Printf("Browser socket: submitting chat: %v", err)
		}
	case model.EventEditorState:
		if h.hooks.OnChange != nil {
			h.hooks.OnChange(string(frame.Content))
		}
	default:
		log.Printf("Browser socket: ignoring unrecognized frame type %q", frame.Type)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
