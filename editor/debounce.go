// Package editor holds the thin surface consumed from the external
// drag-and-drop template editor: four opaque callbacks and a debouncer
// that bounds the rate of editor-state snapshots forwarded to the agent.
package editor

import (
	"log"
	"sync"
	"time"
)

// Debouncer coalesces editor-state change notifications. Only the most
// recent snapshot within the window survives, and a snapshot that is
// byte-identical to the last one actually sent is suppressed entirely.
// It is a pure debounce, not a queue.
type Debouncer struct {
	mu         sync.Mutex
	window     time.Duration
	sink       func(content string)
	timer      *time.Timer
	gen        uint64
	pending    string
	hasPending bool
	lastSent   string
	sentOnce   bool
}

// NewDebouncer creates a Debouncer that delivers snapshots to sink.
func NewDebouncer(window time.Duration, sink func(content string)) *Debouncer {
	return &Debouncer{window: window, sink: sink}
}

// Notify records a new editor-state snapshot. Delivery happens once the
// window elapses without another notification.
func (d *Debouncer) Notify(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = content
	d.hasPending = true
	// Stop cannot interrupt a fire that is already running; the
	// generation check inside fire keeps such a straggler from
	// delivering this snapshot before the new window elapses.
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// Flush delivers any pending snapshot immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop cancels any pending delivery.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = ""
	d.hasPending = false
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.hasPending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	content := d.pending
	d.pending = ""
	d.hasPending = false
	d.timer = nil
	if d.sentOnce && content == d.lastSent {
		d.mu.Unlock()
		return
	}
	d.lastSent = content
	d.sentOnce = true
	d.mu.Unlock()

	d.sink(content)
}

// Hooks is the callback surface the external editor plugin is wired to.
// The editor's lifecycle and document format stay opaque to this process.
type Hooks struct {
	OnChange func(content string)
	OnSave   func(filename, content string)
	OnLoad   func()
	OnError  func(message string)
}

// BridgeHooks returns Hooks that feed content changes into the debouncer
// and log the remaining lifecycle callbacks.
func BridgeHooks(d *Debouncer) Hooks {
	return Hooks{
		OnChange: d.Notify,
		OnSave: func(filename, _ string) {
			log.Printf("Editor: saved %s", filename)
		},
		OnLoad: func() {
			log.Println("Editor: template loaded")
		},
		OnError: func(message string) {
			log.Printf("Editor: error: %s", message)
		},
	}
}
