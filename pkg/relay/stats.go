package relay

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Stats are the process-local counters behind GET /stats. The OpenTelemetry
// instruments mirror them for export; these exist so the endpoint works with
// telemetry disabled.
type Stats struct {
	start         time.Time
	framesRelayed atomic.Int64
	bytesRelayed  atomic.Int64
	clientsActive atomic.Int64
	clientsTotal  atomic.Int64
}

func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) ClientConnected() {
	s.clientsActive.Add(1)
	s.clientsTotal.Add(1)
}

func (s *Stats) ClientDisconnected() {
	s.clientsActive.Add(-1)
}

func (s *Stats) FrameRelayed(bytes int) {
	s.framesRelayed.Add(1)
	s.bytesRelayed.Add(int64(bytes))
}

// JSON renders the current snapshot for the /stats endpoint.
func (s *Stats) JSON() ([]byte, error) {
	return json.Marshal(struct {
		FramesRelayed int64   `json:"frames_relayed"`
		BytesRelayed  int64   `json:"bytes_relayed"`
		ClientsActive int64   `json:"clients_active"`
		ClientsTotal  int64   `json:"clients_total"`
		UptimeSeconds float64 `json:"uptime_seconds"`
	}{
		FramesRelayed: s.framesRelayed.Load(),
		BytesRelayed:  s.bytesRelayed.Load(),
		ClientsActive: s.clientsActive.Load(),
		ClientsTotal:  s.clientsTotal.Load(),
		UptimeSeconds: time.Since(s.start).Seconds(),
	})
}
