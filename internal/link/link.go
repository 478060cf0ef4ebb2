// Package link implements the Link: the named registries for addresses,
// TLS contexts, and listeners that a configuration file resolves
// against, plus the start/stop operations that turn a named listener
// definition into a running listener.Listener.
package link

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/volundmush/mudlink/internal/listener"
	"github.com/volundmush/mudlink/internal/queue"
)

// ConfigError reports a problem found while registering or resolving a
// named entry: a duplicate name, or a reference to a name that was never
// registered.
type ConfigError struct {
	Op   string
	Name string
	Err  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("link: %s %q: %s", e.Op, e.Name, e.Err)
}

// ListenerDef is the configuration for one named listener: which named
// address to bind, which protocol to speak, and optionally which named
// TLS context to wrap it in and what handshake deadline to use instead
// of telnet.DefaultDeadline.
type ListenerDef struct {
	Address  string
	Kind     listener.Kind
	TLS      string // name of a registered TLS context, or ""
	Deadline time.Duration
}

// Link owns three named registries (addresses, TLS contexts, listener
// definitions) plus the live listener.Listener instances built from
// them, all backed by one Queue.
type Link struct {
	Queue *queue.Queue

	mu        sync.Mutex
	addresses map[string]string
	tlsCtxs   map[string]*tls.Config
	defs      map[string]ListenerDef
	running   map[string]*listener.Listener
}

// New returns an empty Link backed by q.
func New(q *queue.Queue) *Link {
	return &Link{
		Queue:     q,
		addresses: make(map[string]string),
		tlsCtxs:   make(map[string]*tls.Config),
		defs:      make(map[string]ListenerDef),
		running:   make(map[string]*listener.Listener),
	}
}

// RegisterAddress names a host:port pair for later listener definitions
// to reference.
func (l *Link) RegisterAddress(name, hostport string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.addresses[name]; exists {
		return &ConfigError{Op: "register_address", Name: name, Err: "already registered"}
	}
	l.addresses[name] = hostport
	return nil
}

// RegisterTLS loads a certificate/key pair and names the resulting TLS
// context for later listener definitions to reference.
func (l *Link) RegisterTLS(name, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return &ConfigError{Op: "register_ssl", Name: name, Err: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tlsCtxs[name]; exists {
		return &ConfigError{Op: "register_ssl", Name: name, Err: "already registered"}
	}
	l.tlsCtxs[name] = &tls.Config{Certificates: []tls.Certificate{cert}}
	return nil
}

// RegisterListener names a listener definition. It does not bind a
// socket — call StartListening for that — but it does validate that
// def.Address (and def.TLS, if set) were already registered.
func (l *Link) RegisterListener(name string, def ListenerDef) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.defs[name]; exists {
		return &ConfigError{Op: "register_listener", Name: name, Err: "already registered"}
	}
	if _, ok := l.addresses[def.Address]; !ok {
		return &ConfigError{Op: "register_listener", Name: name, Err: fmt.Sprintf("unknown address %q", def.Address)}
	}
	if def.TLS != "" {
		if _, ok := l.tlsCtxs[def.TLS]; !ok {
			return &ConfigError{Op: "register_listener", Name: name, Err: fmt.Sprintf("unknown tls context %q", def.TLS)}
		}
	}
	if def.Deadline <= 0 {
		def.Deadline = 0 // zero means the telnet engine falls back to DefaultDeadline
	}

	l.defs[name] = def
	return nil
}

// StartListening binds and starts accepting on the named listener
// definition. It is a no-op (returning nil) if that listener is already
// running.
func (l *Link) StartListening(name string) error {
	l.mu.Lock()
	def, ok := l.defs[name]
	if !ok {
		l.mu.Unlock()
		return &ConfigError{Op: "start_listening", Name: name, Err: "no such listener definition"}
	}
	if _, already := l.running[name]; already {
		l.mu.Unlock()
		return nil
	}
	addr := l.addresses[def.Address]
	var tlsCfg *tls.Config
	if def.TLS != "" {
		tlsCfg = l.tlsCtxs[def.TLS]
	}
	l.mu.Unlock()

	ln := listener.New(name, def.Kind, addr, tlsCfg, def.Deadline, l.Queue)
	if err := ln.Start(); err != nil {
		return err
	}

	l.mu.Lock()
	l.running[name] = ln
	l.mu.Unlock()
	return nil
}

// StopListening stops the named listener if running. A name with no
// running listener is a no-op.
func (l *Link) StopListening(name string) error {
	l.mu.Lock()
	ln, ok := l.running[name]
	if ok {
		delete(l.running, name)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}
	return ln.Stop()
}

// StopAll stops every currently running listener.
func (l *Link) StopAll() {
	l.mu.Lock()
	names := make([]string, 0, len(l.running))
	for name := range l.running {
		names = append(names, name)
	}
	l.mu.Unlock()

	for _, name := range names {
		_ = l.StopListening(name)
	}
}
