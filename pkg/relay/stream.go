package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

const streamHeader = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: multipart/x-mixed-replace; boundary=frame\r\n" +
	"Cache-Control: no-cache, no-store, must-revalidate\r\n" +
	"Pragma: no-cache\r\n" +
	"Connection: close\r\n\r\n"

// streamMJPEG relays frames to one client until the client goes away or the
// server shuts down. Each new frame identity becomes exactly one multipart
// part; unchanged identities are slept over, never resent. The active stream
// also drives retention pruning every PruneInterval.
func (s *Server) streamMJPEG(ctx context.Context, conn net.Conn, client string) {
	s.stats.ClientConnected()
	defer s.stats.ClientDisconnected()
	if s.metrics != nil {
		s.metrics.ClientsActive.Add(ctx, 1)
		defer s.metrics.ClientsActive.Add(context.Background(), -1)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := io.WriteString(conn, streamHeader); err != nil {
		return
	}

	var lastID string
	lastPrune := time.Now()

	for ctx.Err() == nil {
		// Retention cleanup rides along with the active stream on wall
		// clock, independent of whether new frames are arriving.
		if time.Since(lastPrune) >= s.cfg.PruneInterval {
			if removed, err := s.store.Prune(s.cfg.Retention); err != nil {
				slog.Warn("Prune failed", "error", err)
			} else if removed > 0 {
				slog.Debug("Pruned stale frames", "removed", removed, "retention", s.cfg.Retention)
			}
			lastPrune = time.Now()
		}

		frame, err := s.store.Latest()
		if err != nil || frame.ID == lastID || frame.Size == 0 {
			// No frame, or nothing new since the last part: re-poll shortly.
			if !sleepCtx(ctx, s.cfg.PollInterval) {
				return
			}
			continue
		}

		data, err := s.store.Read(frame.ID)
		if err != nil || len(data) == 0 {
			// Pruned or replaced between Latest and Read, or still being
			// written. Treat as "no frame this tick".
			if !sleepCtx(ctx, s.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := writePart(conn, data, s.cfg.WriteTimeout); err != nil {
			// Client write failure terminates this stream only.
			slog.Debug("Stream write failed", "client", client, "error", err)
			return
		}
		lastID = frame.ID
		s.stats.FrameRelayed(len(data))
		if s.metrics != nil {
			s.metrics.FramesRelayed.Add(ctx, 1)
			s.metrics.BytesRelayed.Add(ctx, int64(len(data)))
		}
	}
}

// writePart emits one bit-exact multipart segment:
// --frame\r\nContent-Type: image/jpeg\r\nContent-Length: <n>\r\n\r\n<bytes>\r\n
func writePart(conn net.Conn, data []byte, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := fmt.Fprintf(conn,
		"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(conn, "\r\n")
	return err
}

// sleepCtx sleeps for d unless ctx is cancelled first; it reports whether the
// caller should keep going.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
