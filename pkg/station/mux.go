package station

import (
	"io"
	"net"
	"sync"

	"golang.org/x/xerrors"
)

// ErrPeerNotRegistered is returned by take when the mux is closed before a
// connection for the requested peer/port pair has arrived.
var ErrPeerNotRegistered = xerrors.New("no connection registered for peer/port")

// peerConn is one inbound connection, already past its handshake.
type peerConn struct {
	conn *bufConn
	peer string
	port string
}

// mux accepts inbound connections on a single listener and files each one
// under its handshake's (peer, port) pair so a later Recv can find
// it without knowing which order connections arrive in. Registration is a
// condition-variable wait, not a channel, because an arbitrary number of
// waiters may be blocked on distinct (peer, port) keys at once.
type mux struct {
	self string

	mu      sync.Mutex
	cond    *sync.Cond
	conns   map[string]*peerConn // "peer/port" -> conn
	lastErr error
	closed  bool

	ln net.Listener
}

func newMux(self string, ln net.Listener) *mux {
	m := &mux{self: self, conns: make(map[string]*peerConn), ln: ln}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// serve runs the accept loop until the listener is closed. Run it in its
// own goroutine; it returns when Close is called or the listener errors.
func (m *mux) serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			m.mu.Lock()
			m.lastErr = err
			m.closed = true
			m.cond.Broadcast()
			m.mu.Unlock()
			return
		}
		go m.handle(conn)
	}
}

func (m *mux) handle(conn net.Conn) {
	bc := newBufConn(conn)
	hs, err := readHandshake(bc.r)
	if err != nil {
		conn.Close()
		return
	}
	if err := writeAck(bc); err != nil {
		conn.Close()
		return
	}
	m.mu.Lock()
	m.conns[key(hs.Peer, hs.Port)] = &peerConn{conn: bc, peer: hs.Peer, port: hs.Port}
	m.cond.Broadcast()
	m.mu.Unlock()
}

// take blocks until a connection matching (peer, port) has completed its
// handshake, then removes and returns it. Returns an error if the mux is
// closed before a match arrives.
func (m *mux) take(peer, port string) (*bufConn, error) {
	k := key(peer, port)
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if pc, ok := m.conns[k]; ok {
			delete(m.conns, k)
			return pc.conn, nil
		}
		if m.closed {
			if m.lastErr != nil {
				return nil, xerrors.Errorf("mux closed: %w", m.lastErr)
			}
			return nil, xerrors.Errorf("%w: %s/%s", ErrPeerNotRegistered, peer, port)
		}
		m.cond.Wait()
	}
}

func (m *mux) close() error {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	var merr error
	if err := m.ln.Close(); err != nil {
		merr = err
	}
	for _, pc := range m.conns {
		pc.conn.Close()
	}
	return merr
}

func key(peer, port string) string { return peer + "/" + port }

var _ io.Closer = (*mux)(nil)

func (m *mux) Close() error { return m.close() }
