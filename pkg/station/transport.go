package station

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// send connects to dst's address, performs the handshake and streams v's
// payload, then closes the connection.
func send(ctx context.Context, dialer *retryingDialer, selfName, dstAddr, port string, v workflow.PortValue) error {
	conn, err := dialer.Dial(ctx, "tcp", dstAddr)
	if err != nil {
		return xerrors.Errorf("dialing %q: %w", dstAddr, err)
	}
	defer conn.Close()

	bc := newBufConn(conn)
	if err := writeHandshake(bc, selfName, port); err != nil {
		return xerrors.Errorf("sending handshake: %w", err)
	}
	if err := readAck(bc); err != nil {
		return xerrors.Errorf("reading handshake ack: %w", err)
	}
	if err := writePayload(bc, bc.r, v, openFile); err != nil {
		return xerrors.Errorf("sending payload on port %q: %w", port, err)
	}
	if c, ok := conn.(*net.TCPConn); ok {
		return c.CloseWrite()
	}
	return nil
}

// recv takes the already-accepted connection for (src, port) from mx and
// decodes its payload according to dataType.
func recv(mx *mux, src, port string, dataType workflow.DataType, workdir string) (workflow.PortValue, error) {
	conn, err := mx.take(src, port)
	if err != nil {
		return workflow.PortValue{}, xerrors.Errorf("waiting for %s/%s: %w", src, port, err)
	}
	defer conn.Close()

	if dataType == workflow.TypeFile {
		destDir := filepath.Join(workdir, "rcv_"+port+"_"+uuid.NewString())
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return workflow.PortValue{}, xerrors.Errorf("creating receive dir: %w", err)
		}
		return readFilePayload(conn.r, conn, destDir, createFile)
	}
	return readScalarPayload(conn, dataType)
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}
