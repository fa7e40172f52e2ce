// Package station is the distributed runtime library linked into every
// generated location binary. It implements the wire codec, the connection
// mux, the port store, the step executor and the send/recv transport plus
// broadcast extension behind a single façade, Station.
package station

import (
	"bufio"
	"io"
	"net"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/corewire/flowc/pkg/workflow"
)

// bufConn wraps a net.Conn with a single buffered reader shared across the
// handshake, an optional filename header and the payload itself, so bytes
// the OS happens to deliver together never get split across two
// independently-buffered readers and silently dropped.
type bufConn struct {
	net.Conn
	r *bufio.Reader
}

func newBufConn(c net.Conn) *bufConn {
	return &bufConn{Conn: c, r: bufio.NewReader(c)}
}

func (c *bufConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Wire framing limits and literals. The handshake and filename frames are
// newline-terminated text, bounded to maxFrameBytes; the payload itself
// carries no delimiter at all and is simply read to EOF. Every read in
// this file is driven off a single *bufio.Reader per connection, created
// once and threaded through the handshake, any filename header and the
// payload read, so nothing buffered ahead of a frame boundary is lost.
const (
	maxFrameBytes = 1024
	ackBytes      = "ack"
)

// ErrMalformedHandshake is returned when a handshake frame cannot be parsed
// (no space separating the peer name from the port name).
var ErrMalformedHandshake = xerrors.New("malformed handshake frame")

// ErrFrameTooLong is returned when a handshake or filename frame exceeds
// maxFrameBytes, or when the stream ends before the frame's terminator.
var ErrFrameTooLong = xerrors.New("frame exceeds maximum size")

// ErrMalformedPayload is returned when a String/Int/Bool payload cannot be
// decoded as its declared DataType; the tag is validated symmetrically on
// both the send and receive side.
var ErrMalformedPayload = xerrors.New("malformed payload for declared data type")

// handshakeFrame is the client -> server frame sent on every new
// connection: "<peer_location_name> <port_name>".
type handshakeFrame struct {
	Peer string
	Port string
}

func writeHandshake(w io.Writer, selfName, port string) error {
	line := selfName + " " + port
	if len(line) > maxFrameBytes {
		return xerrors.Errorf("handshake frame %q exceeds %d bytes", line, maxFrameBytes)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// readLine reads a newline-terminated frame, stripping the trailing '\n'.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return line, xerrors.Errorf("%w: unterminated frame %q", ErrFrameTooLong, line)
		}
		return "", xerrors.Errorf("reading frame: %w", err)
	}
	if len(line)-1 > maxFrameBytes {
		return "", xerrors.Errorf("%w: %d bytes", ErrFrameTooLong, len(line)-1)
	}
	return line[:len(line)-1], nil
}

func readHandshake(r *bufio.Reader) (handshakeFrame, error) {
	line, err := readLine(r)
	if err != nil {
		return handshakeFrame{}, err
	}
	idx := indexByte([]byte(line), ' ')
	if idx < 0 {
		return handshakeFrame{}, xerrors.Errorf("%w: %q", ErrMalformedHandshake, line)
	}
	return handshakeFrame{Peer: line[:idx], Port: line[idx+1:]}, nil
}

// readFilenameHeader reads the newline-terminated filename header sent
// ahead of a File payload's body.
func readFilenameHeader(r *bufio.Reader) (string, error) {
	return readLine(r)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func writeAck(w io.Writer) error {
	_, err := io.WriteString(w, ackBytes)
	return err
}

func readAck(r io.Reader) error {
	buf := make([]byte, len(ackBytes))
	if _, err := io.ReadFull(r, buf); err != nil {
		return xerrors.Errorf("reading ack: %w", err)
	}
	if string(buf) != ackBytes {
		return xerrors.Errorf("unexpected ack bytes %q", string(buf))
	}
	return nil
}

// writeScalarPayload streams a String/Int/Bool value's canonical wire form.
func writeScalarPayload(w io.Writer, v workflow.PortValue) error {
	switch v.Kind {
	case workflow.TypeString, workflow.TypeInt, workflow.TypeBool:
		_, err := io.WriteString(w, v.Literal())
		return err
	default:
		return xerrors.Errorf("writing scalar payload: %w: %q", ErrMalformedPayload, v.Kind)
	}
}

// readScalarPayload reads a String/Int/Bool payload to EOF and parses it
// according to dataType, validating the tag on the receive side too.
func readScalarPayload(r io.Reader, dataType workflow.DataType) (workflow.PortValue, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return workflow.PortValue{}, xerrors.Errorf("reading payload: %w", err)
	}
	s := string(raw)
	switch dataType {
	case workflow.TypeString:
		return workflow.StringValue(s), nil
	case workflow.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return workflow.PortValue{}, xerrors.Errorf("%w: int payload %q: %v", ErrMalformedPayload, s, err)
		}
		return workflow.IntValue(n), nil
	case workflow.TypeBool:
		switch s {
		case "true":
			return workflow.BoolValue(true), nil
		case "false":
			return workflow.BoolValue(false), nil
		default:
			return workflow.PortValue{}, xerrors.Errorf("%w: bool payload %q", ErrMalformedPayload, s)
		}
	default:
		return workflow.PortValue{}, xerrors.Errorf("%w: %q", ErrMalformedPayload, dataType)
	}
}

// writePayload streams v's wire form onto w. File values are preceded by a
// filename header and a second ack (read via ackR, confirming the receiver
// is ready to accept the byte stream) before the file's bytes follow; the
// caller is expected to close its side of the connection once done, since
// the payload itself carries no length prefix.
func writePayload(w io.Writer, ackR *bufio.Reader, v workflow.PortValue, openFile func(path string) (io.ReadCloser, error)) error {
	if v.Kind != workflow.TypeFile {
		return writeScalarPayload(w, v)
	}
	name := baseName(v.File)
	if len(name) > maxFrameBytes {
		return xerrors.Errorf("filename header %q exceeds %d bytes", name, maxFrameBytes)
	}
	if _, err := io.WriteString(w, name+"\n"); err != nil {
		return xerrors.Errorf("writing filename header: %w", err)
	}
	if err := readAck(ackR); err != nil {
		return xerrors.Errorf("reading filename ack: %w", err)
	}
	f, err := openFile(v.File)
	if err != nil {
		return xerrors.Errorf("opening %q: %w", v.File, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return xerrors.Errorf("streaming %q: %w", v.File, err)
	}
	return nil
}

// readFilePayload reads a filename header off r, acks it on ackW, then
// reads the file's bytes to EOF (continuing off the same r), writing them
// into a file named baseName(header) under destDir.
func readFilePayload(r *bufio.Reader, ackW io.Writer, destDir string, createFile func(path string) (io.WriteCloser, error)) (workflow.PortValue, error) {
	name, err := readFilenameHeader(r)
	if err != nil {
		return workflow.PortValue{}, err
	}
	if err := writeAck(ackW); err != nil {
		return workflow.PortValue{}, xerrors.Errorf("writing filename ack: %w", err)
	}
	path := destDir + "/" + baseName(name)
	f, err := createFile(path)
	if err != nil {
		return workflow.PortValue{}, xerrors.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return workflow.PortValue{}, xerrors.Errorf("receiving %q: %w", path, err)
	}
	return workflow.FileValue(path), nil
}

func baseName(path string) string {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	return path[idx+1:]
}
