// Command linkadm is an operator dashboard: it loads the same config.json
// mudgate does, starts the listeners, and shows a live TUI of connected
// sessions instead of draining events to a game loop. It exists for
// operators inspecting a gateway deployment without a game attached.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/volundmush/mudlink/internal/dashboard"
	"github.com/volundmush/mudlink/internal/gwconfig"
	"github.com/volundmush/mudlink/internal/link"
	"github.com/volundmush/mudlink/internal/queue"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the gateway's config.json")
	flag.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "linkadm: stdout is not a terminal, refusing to start the dashboard")
		os.Exit(1)
	}

	f, err := gwconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkadm: %v\n", err)
		os.Exit(1)
	}

	q := queue.New()
	l := link.New(q)

	if err := gwconfig.Apply(f, l); err != nil {
		fmt.Fprintf(os.Stderr, "linkadm: %v\n", err)
		os.Exit(1)
	}
	if err := gwconfig.StartAll(f, l); err != nil {
		fmt.Fprintf(os.Stderr, "linkadm: %v\n", err)
		os.Exit(1)
	}
	defer l.StopAll()

	p := tea.NewProgram(dashboard.New(q), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "linkadm: %v\n", err)
		os.Exit(1)
	}
}
