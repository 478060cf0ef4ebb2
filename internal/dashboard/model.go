// Package dashboard implements linkadm's operator TUI: a live view of a
// running Link's connections, built with the same bubbletea/bubbles/
// lipgloss stack and list-browser shape (cursor over rows) the teacher's
// usereditor and configeditor models use.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/volundmush/mudlink/internal/conn"
	"github.com/volundmush/mudlink/internal/queue"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
	rowStyle     = lipgloss.NewStyle().Padding(0, 1)
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	footerStyle  = lipgloss.NewStyle().Faint(true)
)

// row is one line of the rendered connection table.
type row struct {
	id       uint32
	protocol string
	active   bool
	addr     string
	client   string
}

// Model is the linkadm bubbletea model. SessionID is a diagnostic token
// (not a connection id) identifying this particular operator attach —
// useful when more than one operator is watching the same gateway and
// correlating who saw what in a shared log.
type Model struct {
	queue     *queue.Queue
	SessionID uuid.UUID

	rows     []row
	cursor   int
	viewport viewport.Model
	ready    bool
	quit     bool
}

// New attaches a dashboard Model to q.
func New(q *queue.Queue) Model {
	return Model{queue: q, SessionID: uuid.New()}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 3
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderRows())
		return m, nil
	case tickMsg:
		m.refresh()
		m.viewport.SetContent(m.renderRows())
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.viewport.SetContent(m.renderRows())
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			m.viewport.SetContent(m.renderRows())
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	var rows []row
	m.queue.Each(func(id uint32, c *conn.Connection) {
		caps := c.Capabilities()
		rows = append(rows, row{
			id:       id,
			protocol: caps.Protocol.String(),
			active:   c.Active(),
			addr:     c.RemoteAddr().String(),
			client:   caps.ClientName,
		})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) renderRows() string {
	var b strings.Builder
	b.WriteString(rowStyle.Render(fmt.Sprintf("%-8s %-10s %-8s %-22s %s", "ID", "PROTOCOL", "STATE", "ADDRESS", "CLIENT")))
	b.WriteString("\n")
	for i, r := range m.rows {
		state := pendingStyle.Render("negotiating")
		if r.active {
			state = readyStyle.Render("ready")
		}
		line := fmt.Sprintf("%-8d %-10s %-8s %-22s %s", r.id, r.protocol, state, r.addr, r.client)
		if i == m.cursor {
			line = lipgloss.NewStyle().Reverse(true).Render(line)
		}
		b.WriteString(rowStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	if m.quit || !m.ready {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf(" linkadm  session=%s  connections=%d ", m.SessionID.String()[:8], len(m.rows))))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ select   q quit"))
	return b.String()
}
