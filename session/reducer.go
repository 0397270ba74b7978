// Package session owns the per-connection chat state machine.
//
// The transcript is an explicit State value updated by a reducer: every
// inbound agent event produces a new State plus the list of transcript
// updates it caused. Rendering is a pure projection (markdown.Render) and
// runs on the full reconciled content on every update, so a message's
// RenderedHTML never drifts from its RawContent.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-labs/beechat/markdown"
	"github.com/hivemind-labs/beechat/model"
	"github.com/hivemind-labs/beechat/stream"
)

// State is the transcript state for one agent connection. At most one
// streamed message is in flight at a time; InFlightID is empty otherwise.
type State struct {
	Messages   []model.Message
	InFlightID string
}

// UpdateKind distinguishes transcript changes published to views.
type UpdateKind string

const (
	// UpdateUpsert means the message was created or its content changed.
	UpdateUpsert UpdateKind = "upsert"
	// UpdateRemove means the message was discarded (an abandoned
	// in-flight stream superseded by a new start event).
	UpdateRemove UpdateKind = "remove"
)

// Update describes one transcript change caused by an event.
type Update struct {
	Kind    UpdateKind
	Message model.Message
}

// Reducer applies agent events to transcript state. Now and NewID exist so
// tests can pin timestamps and ids; NewReducer wires the real ones.
type Reducer struct {
	Now   func() time.Time
	NewID func() string
}

// NewReducer returns a Reducer using wall-clock time and UUID-derived ids.
func NewReducer() *Reducer {
	return &Reducer{
		Now:   time.Now,
		NewID: func() string { return uuid.NewString()[:8] },
	}
}

// Reduce applies one agent event and returns the next state plus the
// transcript updates it caused. The input state is not mutated.
func (r *Reducer) Reduce(st State, ev model.AgentEvent) (State, []Update) {
	switch ev.Type {
	case model.EventStart:
		return r.reduceStart(st)
	case model.EventStream:
		return r.reduceStream(st, ev.Content)
	case model.EventProgress:
		return r.appendStandalone(st, model.StatusProgress, ev.Message)
	case model.EventComplete:
		return r.reduceComplete(st)
	case model.EventError:
		return r.reduceError(st, ev.Message)
	default:
		// Unrecognized event types are ignored; the controller logs them.
		return st, nil
	}
}

// reduceStart begins a new message lifecycle. A start while a stream is
// already in flight is a protocol violation; the stale in-flight message
// is discarded rather than merged into the new stream.
func (r *Reducer) reduceStart(st State) (State, []Update) {
	if st.InFlightID == "" {
		return st, nil
	}
	var updates []Update
	msgs := make([]model.Message, 0, len(st.Messages))
	for _, m := range st.Messages {
		if m.ID == st.InFlightID {
			updates = append(updates, Update{Kind: UpdateRemove, Message: m})
			continue
		}
		msgs = append(msgs, m)
	}
	return State{Messages: msgs}, updates
}

// reduceStream reconciles one content chunk. The first stream event after
// start allocates the message and its visible placeholder.
func (r *Reducer) reduceStream(st State, content string) (State, []Update) {
	if st.InFlightID == "" {
		msg := model.Message{
			ID:        r.NewID(),
			Role:      model.RoleAssistant,
			Status:    model.StatusStreaming,
			CreatedAt: r.Now(),
		}
		msg.RawContent = stream.Reconcile("", content)
		msg.RenderedHTML = markdown.Render(msg.RawContent)
		next := State{
			Messages:   append(copyMessages(st.Messages), msg),
			InFlightID: msg.ID,
		}
		return next, []Update{{Kind: UpdateUpsert, Message: msg}}
	}

	msgs := copyMessages(st.Messages)
	i := indexOf(msgs, st.InFlightID)
	if i < 0 {
		// In-flight id points at nothing; treat as a fresh stream.
		return r.reduceStream(State{Messages: st.Messages}, content)
	}
	msgs[i].RawContent = stream.Reconcile(msgs[i].RawContent, content)
	msgs[i].RenderedHTML = markdown.Render(msgs[i].RawContent)
	return State{Messages: msgs, InFlightID: st.InFlightID}, []Update{{Kind: UpdateUpsert, Message: msgs[i]}}
}

// reduceComplete runs the final reconciliation pass and freezes content.
func (r *Reducer) reduceComplete(st State) (State, []Update) {
	if st.InFlightID == "" {
		return st, nil
	}
	msgs := copyMessages(st.Messages)
	i := indexOf(msgs, st.InFlightID)
	if i < 0 {
		return State{Messages: msgs}, nil
	}
	msgs[i].RawContent = stream.Reconcile(msgs[i].RawContent, msgs[i].RawContent)
	msgs[i].RenderedHTML = markdown.Render(msgs[i].RawContent)
	msgs[i].Status = model.StatusComplete
	return State{Messages: msgs}, []Update{{Kind: UpdateUpsert, Message: msgs[i]}}
}

// reduceError marks any in-flight message as errored and appends a
// distinct error-tagged entry. The connection stays up.
func (r *Reducer) reduceError(st State, text string) (State, []Update) {
	var updates []Update
	msgs := copyMessages(st.Messages)
	if i := indexOf(msgs, st.InFlightID); i >= 0 {
		msgs[i].Status = model.StatusError
		updates = append(updates, Update{Kind: UpdateUpsert, Message: msgs[i]})
	}
	next, more := r.appendStandalone(State{Messages: msgs}, model.StatusError, text)
	return next, append(updates, more...)
}

// appendStandalone adds a non-streaming entry (progress or error notice)
// without touching the in-flight message.
func (r *Reducer) appendStandalone(st State, status model.MessageStatus, text string) (State, []Update) {
	msg := model.Message{
		ID:           r.NewID(),
		Role:         model.RoleSystem,
		Status:       status,
		RawContent:   text,
		RenderedHTML: markdown.Render(text),
		CreatedAt:    r.Now(),
	}
	next := State{
		Messages:   append(copyMessages(st.Messages), msg),
		InFlightID: st.InFlightID,
	}
	return next, []Update{{Kind: UpdateUpsert, Message: msg}}
}

// UserMessage builds a completed user turn for the transcript.
func (r *Reducer) UserMessage(text string) model.Message {
	return model.Message{
		ID:           r.NewID(),
		Role:         model.RoleUser,
		Status:       model.StatusComplete,
		RawContent:   text,
		RenderedHTML: markdown.Render(text),
		CreatedAt:    r.Now(),
	}
}

func copyMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

func indexOf(msgs []model.Message, id string) int {
	if id == "" {
		return -1
	}
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
