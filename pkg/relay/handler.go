package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxRequestBytes is the fixed receive buffer for the single request read.
// Anything past it is ignored, matching the connection-per-request design.
const maxRequestBytes = 1024

// handleConn reads one request and runs exactly one response branch. The
// connection is closed unconditionally afterwards; there is no keep-alive.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	client := uuid.NewString()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil || n <= 0 {
		// Nothing readable, fail silently.
		return
	}
	req := string(buf[:n])

	switch {
	case strings.Contains(req, "GET /stream"):
		slog.Info("Stream client connected", "client", client, "remote", conn.RemoteAddr().String())
		s.streamMJPEG(ctx, conn, client)
		slog.Info("Stream client disconnected", "client", client)
	case strings.Contains(req, "GET /stats"):
		s.sendStats(conn)
	case strings.Contains(req, "GET /health"):
		s.sendHealth(conn)
	case strings.HasPrefix(req, "GET / "):
		s.sendResponse(conn, "200 OK", "text/html", indexHTML)
	default:
		// Unroutable requests, malformed ones included, get a 404.
		s.sendResponse(conn, "404 Not Found", "text/html", notFoundHTML)
	}
}

// sendResponse writes a complete one-shot HTTP response.
func (s *Server) sendResponse(conn net.Conn, status, contentType, body string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, contentType, len(body), body)
	if err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) sendStats(conn net.Conn) {
	body, err := s.stats.JSON()
	if err != nil {
		s.sendResponse(conn, "500 Internal Server Error", "text/html", "<html><body><h1>500</h1></body></html>")
		return
	}
	s.sendResponse(conn, "200 OK", "application/json", string(body))
}

func (s *Server) sendHealth(conn net.Conn) {
	streaming := s.health != nil && s.health.Alive()
	body := fmt.Sprintf(`{"status":"ok","streaming":%t}`, streaming)
	s.sendResponse(conn, "200 OK", "application/json", body)
}
