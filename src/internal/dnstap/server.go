// Package dnstap receives DNS responses from a resolver over a Frame Streams
// unix socket carrying dnstap protobuf messages.
//
// Every accepted connection is served by its own goroutine with its own
// executor. Frames on one connection are processed strictly in order; a bad
// frame is logged and skipped, and an I/O error or a panic only ends the
// connection it happened on.
package dnstap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	dt "github.com/dnstap/golang-dnstap"
	"github.com/farsightsec/golang-framestream"
	"google.golang.org/protobuf/proto"

	"github.com/maksimkurb/keen-dnsset/src/internal/dispatch"
	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
	"github.com/maksimkurb/keen-dnsset/src/internal/utils"
)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxFrameSize     = 128 * 1024
	DefaultSocketMode       = 0o660
)

// Options configures the socket server.
type Options struct {
	// Mode is applied to the socket file after it is created.
	Mode fs.FileMode
	// HandshakeTimeout bounds the Frame Streams handshake of each connection.
	HandshakeTimeout time.Duration
	// MaxFrameSize is the largest accepted data frame.
	MaxFrameSize uint32
}

func (o *Options) setDefaults() {
	if o.Mode == 0 {
		o.Mode = DefaultSocketMode
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
}

// Server accepts dnstap connections on a unix socket. The socket file is
// owned by the server: Listen clears a stale file and Close removes it.
type Server struct {
	path    string
	opts    Options
	ln      *net.UnixListener
	rules   *rules.RuleSet
	newExec nft.ExecutorFactory
	metrics *metrics.Metrics

	wg      sync.WaitGroup
	mu      sync.Mutex
	conns   map[*net.UnixConn]struct{}
	closed  bool
	connSeq atomic.Uint64
}

// Listen binds the unix socket at path. A leftover socket file from a
// previous run is removed first; any other file at path is an error, as is
// a socket that still accepts connections.
func Listen(path string, opts Options, rs *rules.RuleSet, factory nft.ExecutorFactory, m *metrics.Metrics) (*Server, error) {
	opts.setDefaults()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.NewStreamError("failed to create socket directory", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, apperrors.NewStreamError(fmt.Sprintf("cannot use socket path %s", path), err)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, apperrors.NewStreamError(fmt.Sprintf("failed to listen on %s", path), err)
	}
	ln.SetUnlinkOnClose(true)

	if err := os.Chmod(path, opts.Mode); err != nil {
		utils.CloseOrWarn(ln)
		return nil, apperrors.NewStreamError(fmt.Sprintf("failed to set mode on %s", path), err)
	}

	return &Server{
		path:    path,
		opts:    opts,
		ln:      ln,
		rules:   rs,
		newExec: factory,
		metrics: m,
		conns:   make(map[*net.UnixConn]struct{}),
	}, nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		utils.CloseOrWarn(conn)
		return fmt.Errorf("%s is in use by another process", path)
	}

	log.Debugf("Removing stale socket %s", path)
	return os.Remove(path)
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve accepts connections until ctx is cancelled or Close is called, then
// waits for connection workers to finish.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		utils.CloseOrWarn(s)
	})
	defer stop()

	log.Infof("Listening for dnstap connections on %s", s.path)

	for {
		conn, err := s.ln.AcceptUnix()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			utils.CloseOrWarn(s)
			s.wg.Wait()
			return apperrors.NewStreamError("failed to accept connection", err)
		}

		if !s.track(conn) {
			utils.CloseOrWarn(conn)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn, s.connSeq.Add(1))
	}
}

// Close stops accepting, closes open connections and removes the socket file.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	err := s.ln.Close()
	for conn := range conns {
		_ = conn.Close()
	}

	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		log.Warnf("Failed to remove socket %s: %v", s.path, rmErr)
	}
	log.Infof("Stopped listening on %s", s.path)
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn *net.UnixConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *net.UnixConn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) handleConn(ctx context.Context, conn *net.UnixConn, id uint64) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[dnstap #%d] Panic in connection worker: %v", id, r)
		}
	}()

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	exec, err := s.newExec()
	if err != nil {
		log.Warnf("[dnstap #%d] Failed to create executor: %v", id, err)
		return
	}
	defer utils.CloseOrWarn(exec)

	_ = conn.SetDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	dec, err := framestream.NewDecoder(conn, &framestream.DecoderOptions{
		ContentType:    dt.FSContentType,
		Bidirectional:  true,
		MaxPayloadSize: s.opts.MaxFrameSize,
	})
	if err != nil {
		log.Warnf("[dnstap #%d] Handshake failed: %v", id, err)
		return
	}
	_ = conn.SetDeadline(time.Time{})
	log.Debugf("[dnstap #%d] Connection established", id)

	d := dispatch.New(metrics.TransportDnstap, s.rules, exec, s.metrics)
	frames := 0
	for {
		frame, err := dec.Decode()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debugf("[dnstap #%d] Connection finished after %d frames", id, frames)
			case s.isClosed():
				log.Debugf("[dnstap #%d] Connection closed on shutdown after %d frames", id, frames)
			default:
				log.Warnf("[dnstap #%d] Read failed after %d frames: %v", id, frames, err)
			}
			return
		}
		frames++
		s.handleFrame(ctx, d, id, frame)
	}
}

// handleFrame unwraps one dnstap envelope and dispatches the response it carries.
func (s *Server) handleFrame(ctx context.Context, d *dispatch.Dispatcher, id uint64, frame []byte) {
	envelope := &dt.Dnstap{}
	if err := proto.Unmarshal(frame, envelope); err != nil {
		log.Debugf("[dnstap #%d] Dropping undecodable frame (%d bytes): %v", id, len(frame), err)
		s.metrics.Packet(metrics.TransportDnstap, metrics.ResultRejected)
		s.metrics.DecodeError(metrics.TransportDnstap, "envelope")
		return
	}

	payload := envelope.GetMessage().GetResponseMessage()
	if len(payload) == 0 {
		log.Tracef("[dnstap #%d] Skipping %s frame without response message", id, envelope.GetMessage().GetType())
		s.metrics.Packet(metrics.TransportDnstap, metrics.ResultEmpty)
		return
	}

	s.metrics.Packet(metrics.TransportDnstap, metrics.ResultAccepted)
	d.HandlePayload(ctx, payload)
}
