package capture

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakePipeline stands in for the external processes so restart logic is
// testable without spawning anything.
type fakePipeline struct {
	mu         sync.Mutex
	alive      bool
	startErr   error
	terminated bool
}

func (f *fakePipeline) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.alive = true
	return nil
}

func (f *fakePipeline) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakePipeline) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	f.alive = false
	return nil
}

func (f *fakePipeline) Wait(time.Duration) error { return nil }

func (f *fakePipeline) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

// fakeFactory hands out pipelines in order and records how many were built.
type fakeFactory struct {
	mu        sync.Mutex
	pipelines []*fakePipeline
	built     []*fakePipeline
}

func (f *fakeFactory) build(Spec) Pipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p *fakePipeline
	if len(f.pipelines) > 0 {
		p = f.pipelines[0]
		f.pipelines = f.pipelines[1:]
	} else {
		p = &fakePipeline{}
	}
	f.built = append(f.built, p)
	return p
}

func (f *fakeFactory) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func testConfig(t *testing.T, factory *fakeFactory) Config {
	t.Helper()
	return Config{
		Spec: Spec{
			PipePath:    filepath.Join(t.TempDir(), "camera.pipe"),
			OutputDir:   t.TempDir(),
			FramePrefix: "frame",
		},
		Factory:         factory.build,
		MonitorInterval: 10 * time.Millisecond,
		StopTimeout:     time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestSupervisorStartFailureIsFatal(t *testing.T) {
	factory := &fakeFactory{pipelines: []*fakePipeline{{startErr: errors.New("no camera")}}}
	s := NewSupervisor(testConfig(t, factory))

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Expected start error when the first launch fails")
	}
	if s.State() != StateStopped {
		t.Errorf("Expected state stopped after failed start, got %s", s.State())
	}
}

func TestSupervisorRestartsDeadPipeline(t *testing.T) {
	factory := &fakeFactory{}
	s := NewSupervisor(testConfig(t, factory))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	if !s.Alive() {
		t.Fatal("Expected pipeline alive after start")
	}

	// Simulate the child dying while the server keeps running
	factory.built[0].kill()

	if !waitFor(t, time.Second, func() bool { return s.Alive() && factory.buildCount() >= 2 }) {
		t.Fatalf("Expected pipeline relaunch within the monitoring interval, state=%s builds=%d",
			s.State(), factory.buildCount())
	}
	if s.State() != StateRunning {
		t.Errorf("Expected state running after restart, got %s", s.State())
	}
}

func TestSupervisorRestartFailureIsRetried(t *testing.T) {
	factory := &fakeFactory{pipelines: []*fakePipeline{
		{},                                  // initial launch
		{startErr: errors.New("busy FIFO")}, // first relaunch attempt fails
	}}
	s := NewSupervisor(testConfig(t, factory))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	factory.built[0].kill()

	// Third build succeeds on the following tick
	if !waitFor(t, time.Second, func() bool { return s.Alive() && factory.buildCount() >= 3 }) {
		t.Fatalf("Expected retry after failed relaunch, state=%s builds=%d",
			s.State(), factory.buildCount())
	}
}

func TestSupervisorStop(t *testing.T) {
	factory := &fakeFactory{}
	s := NewSupervisor(testConfig(t, factory))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	s.Stop()

	if s.State() != StateStopped {
		t.Errorf("Expected state stopped, got %s", s.State())
	}
	if s.Alive() {
		t.Error("Expected pipeline dead after stop")
	}
	if !factory.built[0].terminated {
		t.Error("Expected pipeline to receive a termination signal")
	}

	// The monitor has exited, so nothing gets relaunched afterwards
	builds := factory.buildCount()
	time.Sleep(50 * time.Millisecond)
	if factory.buildCount() != builds {
		t.Error("Expected no relaunches after stop")
	}
}
