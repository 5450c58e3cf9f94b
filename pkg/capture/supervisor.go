package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wachiwi/camstream/pkg/telemetry"
)

// State of the supervised pipeline.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config for the Supervisor.
type Config struct {
	Spec Spec
	// Factory builds pipelines; defaults to NewExecPipeline.
	Factory Factory
	// MonitorInterval is how often liveness is checked. Default 1s.
	MonitorInterval time.Duration
	// StopTimeout bounds how long shutdown waits for child exit. Default 5s.
	StopTimeout time.Duration
	Metrics     *telemetry.Metrics
}

// Supervisor launches the capture pipeline, restarts it when it dies and
// tears it down on shutdown. It is the sole writer of the pipeline state.
type Supervisor struct {
	cfg    Config
	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pipeline Pipeline
}

// NewSupervisor applies defaults and returns an unstarted supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Factory == nil {
		cfg.Factory = NewExecPipeline
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	s := &Supervisor{cfg: cfg}
	s.state.Store(int32(StateStarting))
	return s
}

// State returns the current pipeline state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Alive reports whether the transcoder process is currently executing.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	return p != nil && p.Alive()
}

// Start launches the pipeline and the monitor loop. A launch failure here is
// fatal to server startup and returned to the caller.
func (s *Supervisor) Start(ctx context.Context) error {
	p := s.cfg.Factory(s.cfg.Spec)
	if err := p.Start(); err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start capture pipeline: %w", err)
	}

	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
	s.state.Store(int32(StateRunning))

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.monitor(ctx)
	return nil
}

// monitor checks pipeline liveness every tick and relaunches a dead pipeline.
// Relaunch failures are logged and retried on the next tick, never fatal.
func (s *Supervisor) monitor(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		p := s.pipeline
		s.mu.Unlock()
		if p != nil && p.Alive() {
			if s.State() == StateRestarting {
				s.state.Store(int32(StateRunning))
			}
			continue
		}

		s.state.Store(int32(StateRestarting))
		slog.Warn("Capture pipeline died, restarting")

		// Confirm the old processes are gone before recreating the pipe, so
		// the new transcoder never races a half-dead one for the same FIFO.
		if p != nil {
			_ = p.Terminate()
			if err := p.Wait(s.cfg.StopTimeout); err != nil {
				slog.Error("Old pipeline did not exit, retrying next tick", "error", err)
				continue
			}
		}

		next := s.cfg.Factory(s.cfg.Spec)
		if err := next.Start(); err != nil {
			slog.Error("Failed to restart capture pipeline, retrying next tick", "error", err)
			continue
		}

		s.mu.Lock()
		s.pipeline = next
		s.mu.Unlock()
		s.state.Store(int32(StateRunning))
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.PipelineRestarts.Add(ctx, 1)
		}
		slog.Info("Capture pipeline restarted")
	}
}

// Stop terminates the pipeline, waits for it to exit and removes the FIFO.
// Frame artifacts are left to the caller, which owns the frame directory.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	p := s.pipeline
	s.pipeline = nil
	s.mu.Unlock()

	if p != nil {
		_ = p.Terminate()
		if err := p.Wait(s.cfg.StopTimeout); err != nil {
			slog.Error("Capture pipeline did not exit cleanly", "error", err)
		}
	}
	if err := os.Remove(s.cfg.Spec.PipePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove pipe", "path", s.cfg.Spec.PipePath, "error", err)
	}
	s.state.Store(int32(StateStopped))
	slog.Info("Capture supervisor stopped")
}
