package link

import (
	"testing"
	"time"

	"github.com/volundmush/mudlink/internal/listener"
	"github.com/volundmush/mudlink/internal/queue"
)

func TestRegisterAddressDuplicateIsConfigError(t *testing.T) {
	l := New(queue.New())
	if err := l.RegisterAddress("main", "127.0.0.1:4000"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := l.RegisterAddress("main", "127.0.0.1:4001")
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError for duplicate address, got %v", err)
	}
}

func TestRegisterListenerUnknownAddressIsConfigError(t *testing.T) {
	l := New(queue.New())
	err := l.RegisterListener("main", ListenerDef{Address: "nope", Kind: listener.KindTCP})
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError for unknown address, got %v", err)
	}
}

func TestStartStopListening(t *testing.T) {
	l := New(queue.New())
	if err := l.RegisterAddress("main", "127.0.0.1:0"); err != nil {
		t.Fatalf("register address: %v", err)
	}
	if err := l.RegisterListener("main", ListenerDef{Address: "main", Kind: listener.KindTCP, Deadline: time.Hour}); err != nil {
		t.Fatalf("register listener: %v", err)
	}
	if err := l.StartListening("main"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Starting twice is a no-op, not an error.
	if err := l.StartListening("main"); err != nil {
		t.Fatalf("second start should be a no-op, got %v", err)
	}
	if err := l.StopListening("main"); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
