package session

import (
	"log"
	"strings"
	"sync"

	"github.com/hivemind-labs/beechat/model"
)

// Sender delivers outbound client events to the agent.
type Sender interface {
	Send(ev model.ClientEvent) error
}

// MessageStore persists finalized transcript messages.
type MessageStore interface {
	SaveMessage(msg model.Message) error
}

// Controller is the only component that mutates the transcript. It feeds
// agent events through the reducer, publishes the resulting updates to
// attached views, and persists messages once they stop streaming.
type Controller struct {
	mu      sync.Mutex
	state   State
	reducer *Reducer
	bus     *Bus
	store   MessageStore // optional
	sender  Sender
}

// NewController creates a Controller. store may be nil to disable
// persistence.
func NewController(reducer *Reducer, bus *Bus, store MessageStore, sender Sender) *Controller {
	return &Controller{
		reducer: reducer,
		bus:     bus,
		store:   store,
		sender:  sender,
	}
}

// RestoreTranscript seeds the transcript with previously persisted
// messages, ahead of anything already in state. Call it during startup,
// before events flow.
func (c *Controller) RestoreTranscript(msgs []model.Message) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Messages = append(copyMessages(msgs), c.state.Messages...)
}

// HandleAgentEvent applies one inbound agent event to the transcript.
func (c *Controller) HandleAgentEvent(ev model.AgentEvent) {
	switch ev.Type {
	case model.EventStart, model.EventStream, model.EventProgress,
		model.EventComplete, model.EventError:
	default:
		log.Printf("Session: ignoring unrecognized agent event type %q", ev.Type)
		return
	}

	c.mu.Lock()
	next, updates := c.reducer.Reduce(c.state, ev)
	c.state = next
	c.mu.Unlock()

	c.apply(updates)
}

// SubmitChat appends the user's turn to the transcript and forwards it to
// the agent.
func (c *Controller) SubmitChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	msg := c.reducer.UserMessage(text)
	log.Printf("Session: user turn %s: %q", msg.ID, model.Truncate(text, 80))

	c.mu.Lock()
	c.state = State{
		Messages:   append(copyMessages(c.state.Messages), msg),
		InFlightID: c.state.InFlightID,
	}
	c.mu.Unlock()

	c.apply([]Update{{Kind: UpdateUpsert, Message: msg}})
	return c.sender.Send(model.ClientEvent{Type: model.EventChat, Message: text})
}

// ForwardEditorState relays a debounced editor snapshot to the agent.
func (c *Controller) ForwardEditorState(content string) {
	if err := c.sender.Send(model.ClientEvent{Type: model.EventEditorState, Content: content}); err != nil {
		log.Printf("Session: forwarding editor state: %v", err)
	}
}

// Transcript returns a snapshot copy of the transcript.
func (c *Controller) Transcript() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMessages(c.state.Messages)
}

// apply publishes updates and persists messages that are done streaming.
func (c *Controller) apply(updates []Update) {
	for _, u := range updates {
		c.bus.Publish(u)
		if c.store == nil || u.Kind != UpdateUpsert {
			continue
		}
		if u.Message.Status == model.StatusStreaming {
			continue
		}
		if err := c.store.SaveMessage(u.Message); err != nil {
			log.Printf("Session: persisting message %s: %v", u.Message.ID, err)
		}
	}
}
