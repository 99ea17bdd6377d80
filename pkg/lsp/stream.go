package lsp

import (
	"errors"
	"io"
	"io/fs"

	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"
)

// NewStream frames rwc with Content-Length headers
func NewStream(rwc io.ReadWriteCloser) jsonrpc2.ObjectStream {
	return jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
}

// Pipe joins a child process's stdout and stdin into one io.ReadWriteCloser
func Pipe(r io.ReadCloser, w io.WriteCloser) io.ReadWriteCloser {
	return transport{in: r, out: w}
}

type transport struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (t transport) Read(p []byte) (int, error)  { return t.in.Read(p) }
func (t transport) Write(p []byte) (int, error) { return t.out.Write(p) }

func (t transport) Close() error {
	if err := t.in.Close(); err != nil {
		t.out.Close()
		return err
	}
	return t.out.Close()
}

// observedStream reports transport failures to the logger before handing them
// back to jsonrpc2
type observedStream struct {
	jsonrpc2.ObjectStream
	logger *zap.Logger
}

func (s observedStream) ReadObject(v interface{}) error {
	err := s.ObjectStream.ReadObject(v)
	if err != nil && !isClosed(err) {
		s.logger.Error("transport error", zap.String("op", "read"), zap.Error(err))
	}
	return err
}

func (s observedStream) WriteObject(obj interface{}) error {
	err := s.ObjectStream.WriteObject(obj)
	if err != nil && !isClosed(err) {
		s.logger.Error("transport error", zap.String("op", "write"), zap.Error(err))
	}
	return err
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, fs.ErrClosed) ||
		errors.Is(err, jsonrpc2.ErrClosed)
}
