// End-to-end tests for the beechat bridge stack.
//
// This test exercises the full bridge:
//   - Real HTTP router (chi) and browser WebSocket
//   - Real agent WebSocket client with reconnect
//   - Real SQLite store (WAL mode, temp dir)
//   - Real session reducer, reconciler, and markdown renderer
//
// The only thing simulated is the agent service itself, which is a plain
// WebSocket test server speaking the agent event protocol.
//
// Does NOT require API keys or network access.
package beechat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hivemind-labs/beechat/agent"
	"github.com/hivemind-labs/beechat/editor"
	"github.com/hivemind-labs/beechat/httpapi"
	"github.com/hivemind-labs/beechat/model"
	"github.com/hivemind-labs/beechat/session"
	sqliteStore "github.com/hivemind-labs/beechat/store/sqlite"
)

var upgrader = websocket.Upgrader{}

// fakeAgentService speaks the agent side of the event protocol.
type fakeAgentService struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	conn     *websocket.Conn
	received chan model.ClientEvent
}

func newFakeAgentService(t *testing.T) *fakeAgentService {
	t.Helper()
	fa := &fakeAgentService{t: t, received: make(chan model.ClientEvent, 16)}
	fa.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fa.mu.Lock()
		fa.conn = conn
		fa.mu.Unlock()
		for {
			var ev model.ClientEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			fa.received <- ev
		}
	}))
	t.Cleanup(fa.server.Close)
	return fa
}

func (fa *fakeAgentService) url() string {
	return "ws" + strings.TrimPrefix(fa.server.URL, "http")
}

func (fa *fakeAgentService) emit(ev model.AgentEvent) {
	fa.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fa.mu.Lock()
		conn := fa.conn
		fa.mu.Unlock()
		if conn != nil {
			if err := conn.WriteJSON(ev); err != nil {
				fa.t.Fatalf("emitting event: %v", err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	fa.t.Fatal("agent connection never established")
}

type senderFunc func(model.ClientEvent) error

func (f senderFunc) Send(ev model.ClientEvent) error { return f(ev) }

// bridge is an in-process beechat stack against a fake agent.
type bridge struct {
	store      *sqliteStore.Store
	controller *session.Controller
	browserURL string
}

func newBridge(t *testing.T, fa *fakeAgentService, dataDir string) *bridge {
	t.Helper()

	store, err := sqliteStore.New(filepath.Join(dataDir, "e2e.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bus := session.NewBus()

	var agentClient *agent.Client
	ctrl := session.NewController(session.NewReducer(), bus, store, senderFunc(func(ev model.ClientEvent) error {
		return agentClient.Send(ev)
	}))
	agentClient = agent.NewClient(fa.url(), 20*time.Millisecond, ctrl.HandleAgentEvent)

	history, err := store.RecentMessages(200)
	if err != nil {
		t.Fatalf("loading history: %v", err)
	}
	ctrl.RestoreTranscript(history)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go agentClient.Run(ctx)

	debouncer := editor.NewDebouncer(20*time.Millisecond, ctrl.ForwardEditorState)
	t.Cleanup(debouncer.Stop)

	api := httpapi.New(ctrl, bus, editor.BridgeHooks(debouncer), httpapi.AuthConfig{})
	webServer := httptest.NewServer(api.Router())
	t.Cleanup(webServer.Close)

	return &bridge{
		store:      store,
		controller: ctrl,
		browserURL: "ws" + strings.TrimPrefix(webServer.URL, "http") + "/ws",
	}
}

type viewFrame struct {
	Type     string          `json:"type"`
	Kind     string          `json:"kind"`
	Message  model.Message   `json:"message"`
	Messages []model.Message `json:"messages"`
}

func dialView(t *testing.T, b *bridge) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(b.browserURL, nil)
	if err != nil {
		t.Fatalf("dialing browser socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) viewFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame viewFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("reading view frame: %v", err)
	}
	return frame
}

func TestEndToEndChatStream(t *testing.T) {
	fa := newFakeAgentService(t)
	b := newBridge(t, fa, t.TempDir())

	view := dialView(t, b)
	if frame := readView(t, view); frame.Type != "transcript" || len(frame.Messages) != 0 {
		t.Fatalf("unexpected initial frame: %+v", frame)
	}

	// User submits a prompt through the view.
	if err := view.WriteJSON(map[string]string{"type": "chat", "message": "Write a welcome email"}); err != nil {
		t.Fatalf("writing chat: %v", err)
	}

	// The user's turn is mirrored back and forwarded to the agent.
	userFrame := readView(t, view)
	if userFrame.Message.Role != model.RoleUser || userFrame.Message.RenderedHTML != "<p>Write a welcome email</p>" {
		t.Fatalf("unexpected user frame: %+v", userFrame)
	}
	select {
	case ev := <-fa.received:
		if ev.Type != model.EventChat || ev.Message != "Write a welcome email" {
			t.Fatalf("unexpected event at agent: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent never received chat event")
	}

	// Agent streams a reply: duplicate and stale chunks included.
	fa.emit(model.AgentEvent{Type: model.EventStart})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Hel"})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Hel"})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Hello world"})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Hello"})
	fa.emit(model.AgentEvent{Type: model.EventComplete})

	// The view converges on one complete assistant message. Duplicate
	// chunks may or may not produce extra no-op updates; only the final
	// state matters.
	var last viewFrame
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readView(t, view)
		if frame.Type != "message_update" || frame.Message.Role != model.RoleAssistant {
			continue
		}
		last = frame
		if last.Message.Status == model.StatusComplete {
			break
		}
	}
	if last.Message.Status != model.StatusComplete {
		t.Fatalf("assistant message never completed: %+v", last)
	}
	if last.Message.RenderedHTML != "<p>Hello world</p>" {
		t.Fatalf("unexpected final html: %q", last.Message.RenderedHTML)
	}

	// Exactly one assistant placeholder was created.
	msgs := b.controller.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant messages, got %+v", msgs)
	}

	// Finalized messages were persisted.
	saved, err := b.store.RecentMessages(0)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected two persisted messages, got %+v", saved)
	}
}

func TestEndToEndProgressAndError(t *testing.T) {
	fa := newFakeAgentService(t)
	b := newBridge(t, fa, t.TempDir())

	view := dialView(t, b)
	readView(t, view)

	fa.emit(model.AgentEvent{Type: model.EventStart})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Working on the hero"})
	fa.emit(model.AgentEvent{Type: model.EventProgress, Message: "Checking the hero section"})
	fa.emit(model.AgentEvent{Type: model.EventError, Message: "tool call limit reached"})

	deadline := time.Now().Add(2 * time.Second)
	sawProgress, sawError := false, false
	for time.Now().Before(deadline) && !(sawProgress && sawError) {
		frame := readView(t, view)
		if frame.Type != "message_update" {
			continue
		}
		switch frame.Message.Status {
		case model.StatusProgress:
			sawProgress = true
		case model.StatusError:
			sawError = true
		}
	}
	if !sawProgress || !sawError {
		t.Fatalf("expected progress and error updates (progress=%v error=%v)", sawProgress, sawError)
	}

	// The error does not tear the session down: a new stream still works.
	fa.emit(model.AgentEvent{Type: model.EventStart})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Recovered"})
	fa.emit(model.AgentEvent{Type: model.EventComplete})

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readView(t, view)
		if frame.Message.Status == model.StatusComplete && frame.Message.RenderedHTML == "<p>Recovered</p>" {
			return
		}
	}
	t.Fatal("session did not recover after agent error")
}

func TestEndToEndEditorStateDebounce(t *testing.T) {
	fa := newFakeAgentService(t)
	b := newBridge(t, fa, t.TempDir())

	view := dialView(t, b)
	readView(t, view)

	// Burst of editor changes; only the latest survives the window.
	for _, v := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
		if err := view.WriteJSON(map[string]any{"type": "editor_state", "content": json.RawMessage(v)}); err != nil {
			t.Fatalf("writing editor_state: %v", err)
		}
	}

	select {
	case ev := <-fa.received:
		if ev.Type != model.EventEditorState || ev.Content != `{"v":3}` {
			t.Fatalf("unexpected editor event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent never received editor state")
	}

	// No second delivery for the burst.
	select {
	case ev := <-fa.received:
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndToEndTranscriptSurvivesRestart(t *testing.T) {
	fa := newFakeAgentService(t)
	dataDir := t.TempDir()

	b := newBridge(t, fa, dataDir)
	view := dialView(t, b)
	readView(t, view)

	fa.emit(model.AgentEvent{Type: model.EventStart})
	fa.emit(model.AgentEvent{Type: model.EventStream, Content: "Saved reply"})
	fa.emit(model.AgentEvent{Type: model.EventComplete})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("assistant message never completed")
		}
		if frame := readView(t, view); frame.Message.Status == model.StatusComplete {
			break
		}
	}

	// A fresh bridge over the same data directory serves the persisted
	// history to a new view.
	b2 := newBridge(t, fa, dataDir)
	view2 := dialView(t, b2)
	frame := readView(t, view2)
	if frame.Type != "transcript" {
		t.Fatalf("expected transcript frame, got %+v", frame)
	}
	if len(frame.Messages) != 1 || frame.Messages[0].RenderedHTML != "<p>Saved reply</p>" {
		t.Fatalf("restored transcript missing: %+v", frame.Messages)
	}
	if frame.Messages[0].Status != model.StatusComplete {
		t.Fatalf("unexpected restored status: %+v", frame.Messages[0])
	}
}
