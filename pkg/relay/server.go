// Package relay is the frame-relay server: a hand-written TCP/HTTP server
// that serves the index page and the multipart MJPEG stream, one goroutine
// per accepted connection.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wachiwi/camstream/pkg/framestore"
	"github.com/wachiwi/camstream/pkg/telemetry"
)

// Health is what the server needs to know about the capture pipeline.
// The capture supervisor satisfies it.
type Health interface {
	Alive() bool
}

// Config for the relay server.
type Config struct {
	// Addr to listen on, e.g. ":5000". All interfaces by default.
	Addr string
	// Retention is how many frame artifacts survive a prune pass.
	Retention int
	// PollInterval between frame-store polls in a stream. Default 50ms.
	PollInterval time.Duration
	// PruneInterval between prune passes inside an active stream. Default 5s.
	PruneInterval time.Duration
	// AcceptInterval bounds each Accept wait so shutdown is observed
	// promptly. Default 250ms.
	AcceptInterval time.Duration
	// WriteTimeout is the per-write deadline on client sockets. Default 10s.
	WriteTimeout time.Duration
	// ReadTimeout for the single request read. Default 5s.
	ReadTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.Retention <= 0 {
		c.Retention = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = 5 * time.Second
	}
	if c.AcceptInterval <= 0 {
		c.AcceptInterval = 250 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
}

// Server owns the listening socket and dispatches connections.
type Server struct {
	cfg     Config
	store   framestore.Store
	health  Health
	stats   *Stats
	metrics *telemetry.Metrics

	ln     *net.TCPListener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires the relay together. metrics may be nil.
func NewServer(cfg Config, store framestore.Store, health Health, metrics *telemetry.Metrics) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:     cfg,
		store:   store,
		health:  health,
		stats:   NewStats(),
		metrics: metrics,
	}
}

// Start binds the listener and runs the accept loop in the background.
// A bind failure aborts startup and is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return opErr
		},
	}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln.(*net.TCPListener)

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.acceptLoop(ctx)

	slog.Info("Relay server listening", "addr", s.ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// acceptLoop waits with a bounded deadline so cancellation is noticed even
// when no client ever connects. Transient accept errors are logged and the
// loop continues; only closure or cancellation ends it.
func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.ln.SetDeadline(time.Now().Add(s.cfg.AcceptInterval)); err != nil {
			return
		}
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("Accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting, closes the listener and waits for in-flight
// connection handlers to observe cancellation, at most until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Relay server stopped")
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for connection handlers")
	}
}
