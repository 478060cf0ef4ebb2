// Command mudgate runs the gateway: it loads a config.json describing
// named addresses, TLS contexts, and listeners, starts them all, and
// drains inbound events to stdout as a stand-in game loop so the whole
// stack can be exercised end to end without a real MUD attached.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/volundmush/mudlink/internal/event"
	"github.com/volundmush/mudlink/internal/gwconfig"
	"github.com/volundmush/mudlink/internal/gwlog"
	"github.com/volundmush/mudlink/internal/link"
	"github.com/volundmush/mudlink/internal/queue"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the gateway's config.json")
	watch := flag.Bool("watch", true, "hot-reload config.json on change")
	tickMs := flag.Int("tick-ms", 100, "game-loop tick interval in milliseconds")
	flag.Parse()

	f, err := gwconfig.Load(*configPath)
	if err != nil {
		gwlog.Error("mudgate: %v", err)
		os.Exit(1)
	}

	q := queue.New()
	l := link.New(q)

	if err := gwconfig.Apply(f, l); err != nil {
		gwlog.Error("mudgate: %v", err)
		os.Exit(1)
	}
	if err := gwconfig.StartAll(f, l); err != nil {
		gwlog.Error("mudgate: %v", err)
		os.Exit(1)
	}

	var watcher *gwconfig.Watcher
	if *watch {
		watcher, err = gwconfig.NewWatcher(*configPath, l)
		if err != nil {
			gwlog.Warn("mudgate: config watch disabled: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	ticker := time.NewTicker(time.Duration(*tickMs) * time.Millisecond)
	defer ticker.Stop()

	gwlog.Info("mudgate: running")
	for {
		select {
		case <-sigCh:
			gwlog.Info("mudgate: shutting down")
			if watcher != nil {
				watcher.Stop()
			}
			l.StopAll()
			out.Flush()
			return
		case <-ticker.C:
			runTick(q, out)
		}
	}
}

// runTick is the stand-in game loop: drain every connection's inbound
// events and print them, then flush whatever outbound work the "game"
// queued in response. A real host would replace the body of this
// function with its own command interpreter; the Queue/Connection
// surface is what it would drive instead of stdout.
func runTick(q *queue.Queue, out *bufio.Writer) {
	for id, events := range q.DrainInbound() {
		for _, ev := range events {
			logInbound(out, id, ev)
		}
	}
	q.ProcessOutEvents()
}

func logInbound(out *bufio.Writer, id uint32, ev event.Inbound) {
	switch ev.Kind {
	case event.Ready:
		fmt.Fprintf(out, "[%d] ready: protocol=%s color=%s mtts=%q\n",
			id, ev.Capabilities.Protocol, ev.Capabilities.Color, ev.Capabilities.ClientName)
	case event.CapabilitiesUpdate:
		fmt.Fprintf(out, "[%d] capabilities updated: color=%s gmcp=%v msdp=%v\n",
			id, ev.Capabilities.Color, ev.Capabilities.GMCP, ev.Capabilities.MSDP)
	case event.Line:
		fmt.Fprintf(out, "[%d] > %s\n", id, ev.Line)
	case event.Text, event.Prompt:
		fmt.Fprintf(out, "[%d] text: %s\n", id, ev.Line)
	case event.OobData:
		fmt.Fprintf(out, "[%d] oob %s: %d bytes\n", id, ev.OobName, len(ev.OobPayload))
	case event.MSSP:
		fmt.Fprintf(out, "[%d] mssp: %d entries\n", id, len(ev.MSSPData))
	case event.Disconnect:
		fmt.Fprintf(out, "[%d] disconnected\n", id)
	}
	out.Flush()
}
