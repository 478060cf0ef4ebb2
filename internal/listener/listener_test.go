package listener

import (
	"net"
	"testing"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/conn"
)

type fakeRegistrar struct {
	registered int
}

func (r *fakeRegistrar) Register(transport conn.Transport, protocol capabilities.Protocol, deadline time.Duration) *conn.Connection {
	r.registered++
	c := conn.New(uint32(r.registered), transport, protocol, deadline, nil)
	c.Start()
	return c
}

func TestTCPListenerAcceptsAndRegisters(t *testing.T) {
	reg := &fakeRegistrar{}
	l := New("test", KindTCP, "127.0.0.1:0", nil, time.Hour, reg)

	// l.Addr uses port 0, so Start binds an ephemeral port; read the
	// bound address back from l.tcpLn and dial it.
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer l.Stop()

	addr := l.tcpLn.Addr().String()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(time.Second)
	for reg.registered == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if reg.registered == 0 {
		t.Fatal("expected the accept loop to register a connection")
	}
}
