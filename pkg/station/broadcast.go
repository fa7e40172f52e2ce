package station

import (
	"context"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// broadcast sends v to every address in dstAddrs, reading a File value's
// bytes from disk exactly once and tee-ing them to every destination
// instead of performing N independent reads. Scalar values are encoded
// once and replayed verbatim to each destination. Handshakes still happen
// independently per destination: broadcast is an optimization over the
// source read, not a change to the wire protocol, so each peer sees
// exactly the same handshake/ack/payload sequence as a plain send.
func broadcast(ctx context.Context, dialer *retryingDialer, selfName string, dstAddrs map[string]string, port string, v workflow.PortValue) error {
	conns := make(map[string]*bufConn, len(dstAddrs))
	for dst, addr := range dstAddrs {
		conn, err := dialer.Dial(ctx, "tcp", addr)
		if err != nil {
			closeAll(conns)
			return xerrors.Errorf("dialing %q for broadcast: %w", addr, err)
		}
		bc := newBufConn(conn)
		if err := writeHandshake(bc, selfName, port); err != nil {
			closeAll(conns)
			return xerrors.Errorf("sending handshake to %q: %w", dst, err)
		}
		if err := readAck(bc); err != nil {
			closeAll(conns)
			return xerrors.Errorf("reading ack from %q: %w", dst, err)
		}
		conns[dst] = bc
	}
	defer closeAll(conns)

	writers := make([]io.Writer, 0, len(conns))
	for _, c := range conns {
		writers = append(writers, c)
	}
	tee := io.MultiWriter(writers...)

	if v.Kind != workflow.TypeFile {
		return writeScalarPayload(tee, v)
	}

	// The filename header's ack is per-destination, so it cannot be teed;
	// only the file body itself (the part worth reading once) is shared.
	name := baseName(v.File)
	for dst, conn := range conns {
		if _, err := io.WriteString(conn, name+"\n"); err != nil {
			return xerrors.Errorf("broadcasting filename header to %q: %w", dst, err)
		}
		if err := readAck(conn); err != nil {
			return xerrors.Errorf("reading filename ack from %q: %w", dst, err)
		}
	}

	f, err := os.Open(v.File)
	if err != nil {
		return xerrors.Errorf("opening %q for broadcast: %w", v.File, err)
	}
	defer f.Close()
	if _, err := io.Copy(tee, f); err != nil {
		return xerrors.Errorf("streaming %q to broadcast destinations: %w", v.File, err)
	}
	return nil
}

func closeAll(conns map[string]*bufConn) {
	for _, c := range conns {
		c.Close()
	}
}
