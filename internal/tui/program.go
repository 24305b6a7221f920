package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/wsfetch/internal/events"
	"github.com/mattjoyce/wsfetch/internal/pipeline"
)

// Program wraps a bubbletea program bound to an orchestrator hub.
type Program struct {
	p      *tea.Program
	unbind func()
}

// NewProgram binds to hub before returning, so a run started afterwards is
// seen from its first event. Events are forwarded with Send, which blocks the
// publisher until the program loop accepts them; nothing is dropped.
func NewProgram(ctx context.Context, hub *events.Hub, cancel func() bool, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(cancel), opts...)
	unbind := hub.SubscribeFunc(func(ev events.Event) {
		p.Send(EventMsg(ev))
	})
	return &Program{p: p, unbind: unbind}
}

// Run blocks until the user quits and returns the finished event, if one was
// received.
func (p *Program) Run() (pipeline.FinishedEvent, bool, error) {
	defer p.unbind()

	final, err := p.p.Run()
	if err != nil {
		return pipeline.FinishedEvent{}, false, fmt.Errorf("terminal UI: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return pipeline.FinishedEvent{}, false, nil
	}
	summary, ok := m.Summary()
	return summary, ok, nil
}

// Close releases the hub subscription without running the program.
func (p *Program) Close() {
	p.unbind()
}
