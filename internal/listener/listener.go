// Package listener implements the bound acceptor: a named TCP (optionally
// TLS-wrapped) or WebSocket (optionally TLS) listener that hands every
// accepted socket to a Queue as a new Connection.
package listener

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/conn"
	"github.com/volundmush/mudlink/internal/gwlog"

	"github.com/coder/websocket"
)

// Kind identifies what a Listener accepts.
type Kind int

const (
	KindTCP Kind = iota
	KindWebSocket
)

// Registrar is the subset of queue.Queue a Listener needs.
type Registrar interface {
	Register(transport conn.Transport, protocol capabilities.Protocol, deadline time.Duration) *conn.Connection
}

// Listener owns one bound socket and the accept loop feeding it.
type Listener struct {
	Name     string
	Kind     Kind
	Addr     string
	TLS      *tls.Config
	Deadline time.Duration

	registrar Registrar

	mu       sync.Mutex
	tcpLn    net.Listener
	httpSrv  *http.Server
	running  bool
	stopOnce sync.Once
}

// New builds a Listener. deadline is the per-connection handshake
// deadline; zero means the telnet engine's DefaultDeadline (500ms).
func New(name string, kind Kind, addr string, tlsCfg *tls.Config, deadline time.Duration, registrar Registrar) *Listener {
	return &Listener{Name: name, Kind: kind, Addr: addr, TLS: tlsCfg, Deadline: deadline, registrar: registrar}
}

// Start binds the socket and begins accepting in the background. It
// returns once the bind succeeds (or fails), not once accepting stops.
func (l *Listener) Start() error {
	switch l.Kind {
	case KindWebSocket:
		return l.startWebSocket()
	default:
		return l.startTCP()
	}
}

func (l *Listener) startTCP() error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("listener %q: bind %s: %w", l.Name, l.Addr, err)
	}

	l.mu.Lock()
	l.tcpLn = ln
	l.running = true
	l.mu.Unlock()

	gwlog.Info("listener %q: accepting TCP on %s (tls=%v)", l.Name, l.Addr, l.TLS != nil)
	go l.acceptLoop(ln)
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			stopped := !l.running
			l.mu.Unlock()
			if stopped {
				gwlog.Info("listener %q: accept loop stopped", l.Name)
				return
			}
			gwlog.Error("listener %q: accept error: %v", l.Name, err)
			continue
		}
		go l.handleTCP(raw)
	}
}

func (l *Listener) handleTCP(raw net.Conn) {
	var transport conn.Transport
	if l.TLS != nil {
		t, err := conn.NewTLSTCPTransport(raw, l.TLS)
		if err != nil {
			gwlog.Warn("listener %q: TLS handshake with %s failed: %v", l.Name, raw.RemoteAddr(), err)
			_ = raw.Close()
			return
		}
		transport = t
	} else {
		transport = conn.NewTCPTransport(raw)
	}

	c := l.registrar.Register(transport, capabilities.Telnet, l.Deadline)
	gwlog.Info("listener %q: connection %d accepted from %s", l.Name, c.ID, c.RemoteAddr())
}

func (l *Listener) startWebSocket() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleWebSocket)

	l.mu.Lock()
	l.httpSrv = &http.Server{Addr: l.Addr, Handler: mux}
	l.running = true
	srv := l.httpSrv
	tlsCfg := l.TLS
	l.mu.Unlock()

	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("listener %q: bind %s: %w", l.Name, l.Addr, err)
	}

	gwlog.Info("listener %q: accepting WebSocket on %s (tls=%v)", l.Name, l.Addr, tlsCfg != nil)

	go func() {
		var serveErr error
		if tlsCfg != nil {
			srv.TLSConfig = tlsCfg
			serveErr = srv.ServeTLS(ln, "", "")
		} else {
			serveErr = srv.Serve(ln)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			gwlog.Error("listener %q: http server stopped: %v", l.Name, serveErr)
		}
	}()
	return nil
}

func (l *Listener) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	transport, err := conn.AcceptWS(w, r, &websocket.AcceptOptions{})
	if err != nil {
		gwlog.Warn("listener %q: websocket upgrade from %s failed: %v", l.Name, r.RemoteAddr, err)
		return
	}

	c := l.registrar.Register(transport, capabilities.WebSocket, l.Deadline)
	gwlog.Info("listener %q: connection %d accepted from %s", l.Name, c.ID, c.RemoteAddr())
}

// Stop halts further accepts and closes the bound socket. In-flight
// connections are left running; the game is expected to tear them down
// through the normal Disconnected outbound event if it wants a hard
// stop.
func (l *Listener) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.running = false
		ln := l.tcpLn
		srv := l.httpSrv
		l.mu.Unlock()

		gwlog.Info("listener %q: stopping", l.Name)
		if ln != nil {
			err = ln.Close()
		}
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutErr := srv.Shutdown(ctx); shutErr != nil && err == nil {
				err = shutErr
			}
		}
	})
	return err
}
