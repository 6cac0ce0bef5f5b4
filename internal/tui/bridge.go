package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tracker/internal/ui"
)

// Bridge forwards synchronizer callbacks into a running program. It exists
// before the program does, so it can be handed to syncer.Options up front.
// Sends never block the caller.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
	early   []tea.Msg
}

// NewBridge returns an unattached Bridge.
func NewBridge() *Bridge { return &Bridge{} }

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	early := b.early
	b.early = nil
	b.mu.Unlock()
	for _, msg := range early {
		go p.Send(msg)
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.program == nil {
		b.early = append(b.early, msg)
		return
	}
	// p.Send blocks until the event loop reads; callers may hold locks.
	go b.program.Send(msg)
}

// Changed implements syncer.Options.OnChange.
func (b *Bridge) Changed() { b.send(changedMsg{}) }

// Notify implements ui.Notifier.
func (b *Bridge) Notify(level ui.Level, msg string) {
	b.send(noticeMsg{level: level, text: msg})
}
