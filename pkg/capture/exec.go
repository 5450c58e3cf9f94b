package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// execPipeline runs the real capture tool and transcoder as OS processes
// connected through a named pipe.
type execPipeline struct {
	spec      Spec
	capture   *exec.Cmd
	transcode *exec.Cmd
	alive     atomic.Bool
	done      chan struct{}
}

// NewExecPipeline is the production Factory.
func NewExecPipeline(spec Spec) Pipeline {
	return &execPipeline{spec: spec, done: make(chan struct{})}
}

// captureCommand picks the camera tool. Newer Raspberry Pi OS ships
// rpicam-vid, older releases libcamera-vid.
func captureCommand(spec Spec) (*exec.Cmd, error) {
	cmdName := "rpicam-vid"
	if _, err := exec.LookPath(cmdName); err != nil {
		cmdName = "libcamera-vid"
		if _, err := exec.LookPath(cmdName); err != nil {
			return nil, errors.New("neither rpicam-vid nor libcamera-vid found")
		}
	}
	return exec.Command(
		cmdName,
		"--camera", fmt.Sprintf("%d", spec.CameraIndex),
		"--width", fmt.Sprintf("%d", spec.Width),
		"--height", fmt.Sprintf("%d", spec.Height),
		"--framerate", fmt.Sprintf("%d", spec.FPS),
		"--timeout", "0",
		"--nopreview",
		"--codec", "mjpeg",
		"--output", spec.PipePath,
	), nil
}

// transcodeCommand builds the ffmpeg invocation reading the FIFO and writing
// one JPEG file per frame with the timestamp embedded in the name.
func transcodeCommand(spec Spec) *exec.Cmd {
	pattern := filepath.Join(spec.OutputDir, spec.FramePrefix+"_%Y%m%d%H%M%S.jpg")
	return exec.Command(
		"ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "mjpeg",
		"-i", spec.PipePath,
		"-q:v", "5",
		"-f", "image2",
		"-strftime", "1",
		pattern,
	)
}

func (p *execPipeline) Start() error {
	if err := os.MkdirAll(p.spec.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// A leftover FIFO from a previous run must go before Mkfifo.
	if err := os.Remove(p.spec.PipePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale pipe: %w", err)
	}
	if err := unix.Mkfifo(p.spec.PipePath, 0o600); err != nil {
		return fmt.Errorf("failed to create pipe %s: %w", p.spec.PipePath, err)
	}

	capture, err := captureCommand(p.spec)
	if err != nil {
		return err
	}
	transcode := transcodeCommand(p.spec)
	transcode.Stderr = os.Stderr
	capture.Stderr = os.Stderr

	// The transcoder opens the read side of the FIFO, so it goes first; the
	// capture tool blocks on the write side until the reader is there.
	if err := transcode.Start(); err != nil {
		return fmt.Errorf("failed to start transcoder: %w", err)
	}
	if err := capture.Start(); err != nil {
		_ = transcode.Process.Signal(syscall.SIGTERM)
		_ = transcode.Wait()
		return fmt.Errorf("failed to start capture tool: %w", err)
	}

	p.capture = capture
	p.transcode = transcode
	p.alive.Store(true)
	slog.Info("Capture pipeline started",
		"capture", capture.Path, "transcoder", transcode.Path, "pipe", p.spec.PipePath)

	go p.reap()
	return nil
}

// reap waits on both children so they never linger as zombies. Liveness
// follows the transcoder: once it exits no new frames can appear.
func (p *execPipeline) reap() {
	transcodeDone := make(chan struct{})
	go func() {
		if err := p.transcode.Wait(); err != nil {
			slog.Warn("Transcoder exited", "error", err)
		}
		p.alive.Store(false)
		close(transcodeDone)
	}()

	if err := p.capture.Wait(); err != nil {
		slog.Warn("Capture tool exited", "error", err)
	}
	<-transcodeDone
	close(p.done)
}

func (p *execPipeline) Alive() bool {
	return p.alive.Load()
}

func (p *execPipeline) Terminate() error {
	var errs []error
	for _, cmd := range []*exec.Cmd{p.capture, p.transcode} {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until both processes are reaped, killing them if they ignore
// SIGTERM past the timeout.
func (p *execPipeline) Wait(timeout time.Duration) error {
	if p.transcode == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
	}
	for _, cmd := range []*exec.Cmd{p.capture, p.transcode} {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return errors.New("pipeline did not exit after kill")
	}
}
