package station

import (
	"net"
	"testing"
	"time"
)

func dialHandshake(t *testing.T, addr, peer, port string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := writeHandshake(conn, peer, port); err != nil {
		t.Fatalf("writeHandshake: %v", err)
	}
	if err := readAck(conn); err != nil {
		t.Fatalf("readAck: %v", err)
	}
	return conn
}

func TestMuxTakeAfterHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := newMux("l0", ln)
	go m.serve()
	defer m.close()

	client := dialHandshake(t, ln.Addr().String(), "l1", "p")
	defer client.Close()

	conn, err := m.take("l1", "p")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	defer conn.Close()
}

func TestMuxTakeBlocksUntilMatchingHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := newMux("l0", ln)
	go m.serve()
	defer m.close()

	resultCh := make(chan error, 1)
	go func() {
		_, err := m.take("l1", "p")
		resultCh <- err
	}()

	select {
	case <-resultCh:
		t.Fatal("take returned before any handshake arrived")
	case <-time.After(20 * time.Millisecond):
	}

	client := dialHandshake(t, ln.Addr().String(), "l1", "p")
	defer client.Close()

	select {
	case err := <-resultCh:
		if err != nil {
			t.Fatalf("take: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("take did not unblock after handshake")
	}
}

func TestMuxTakeErrorsAfterClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := newMux("l0", ln)
	go m.serve()

	if err := m.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = m.take("never-connects", "p")
	if err == nil {
		t.Fatal("take: want error after close, got nil")
	}
}
