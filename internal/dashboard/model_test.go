package dashboard

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/volundmush/mudlink/internal/queue"
)

func TestModelRefreshTracksQueueSize(t *testing.T) {
	q := queue.New()
	m := New(q)
	m.refresh()
	if len(m.rows) != 0 {
		t.Fatalf("expected no rows on an empty queue, got %d", len(m.rows))
	}
}

func TestModelHandlesWindowSizeAndQuit(t *testing.T) {
	m := New(queue.New())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	mm := updated.(Model)
	if !mm.ready {
		t.Fatal("expected model to be ready after a WindowSizeMsg")
	}

	updated, cmd := mm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	mm = updated.(Model)
	if !mm.quit {
		t.Fatal("expected 'q' to set quit")
	}
	if cmd == nil {
		t.Fatal("expected tea.Quit command")
	}
}
