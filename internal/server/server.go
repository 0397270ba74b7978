// Package server wires the beechat bridge together: transcript store,
// session controller, agent connection, editor debouncer, and HTTP surface.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hivemind-labs/beechat/agent"
	"github.com/hivemind-labs/beechat/editor"
	"github.com/hivemind-labs/beechat/httpapi"
	"github.com/hivemind-labs/beechat/internal/config"
	"github.com/hivemind-labs/beechat/model"
	"github.com/hivemind-labs/beechat/session"
	sqliteStore "github.com/hivemind-labs/beechat/store/sqlite"
)

// historyLimit bounds how much persisted transcript is reloaded into the
// live session at startup.
const historyLimit = 200

// senderFunc adapts a function to the session.Sender interface.
type senderFunc func(model.ClientEvent) error

func (f senderFunc) Send(ev model.ClientEvent) error { return f(ev) }

// Server is the beechat bridge server.
type Server struct {
	config     *config.Config
	store      *sqliteStore.Store
	bus        *session.Bus
	controller *session.Controller
	agent      *agent.Client
	debouncer  *editor.Debouncer
	api        *httpapi.Handler
}

// New creates a new Server with all dependencies.
func New(cfg *config.Config) (*Server, error) {
	store, err := sqliteStore.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s := &Server{config: cfg, store: store, bus: session.NewBus()}

	// The agent client is both the event source feeding the controller
	// and the sender the controller forwards outbound events through.
	s.controller = session.NewController(session.NewReducer(), s.bus, store, senderFunc(func(ev model.ClientEvent) error {
		return s.agent.Send(ev)
	}))
	s.agent = agent.NewClient(cfg.AgentURL, cfg.ReconnectDelay, s.controller.HandleAgentEvent)

	history, err := store.RecentMessages(historyLimit)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading transcript history: %w", err)
	}
	s.controller.RestoreTranscript(history)

	s.debouncer = editor.NewDebouncer(cfg.DebounceWindow, s.controller.ForwardEditorState)
	hooks := editor.BridgeHooks(s.debouncer)

	if !cfg.EditorEnabled() {
		log.Println("Beefree credentials not configured; token proxy disabled")
	}

	s.api = httpapi.New(s.controller, s.bus, hooks, httpapi.AuthConfig{
		URL:          cfg.BeefreeAuthURL,
		ClientID:     cfg.BeefreeClientID,
		ClientSecret: cfg.BeefreeClientSecret,
		UID:          cfg.BeefreeUID,
	})

	return s, nil
}

// Start runs the agent connection and the HTTP server until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.agent.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Agent connection loop ended: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    s.config.ServerAddr,
		Handler: s.api.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("beechat bridge listening on %s", s.config.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	s.debouncer.Stop()
	return s.store.Close()
}
