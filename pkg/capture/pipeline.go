// Package capture supervises the external capture pipeline: a camera tool
// streaming MJPEG into a named pipe and a transcoder turning that stream into
// timestamped JPEG files.
package capture

import "time"

// Spec describes one pipeline launch.
type Spec struct {
	// CameraIndex selects the camera device passed to the capture tool.
	CameraIndex int
	FPS         int
	Width       int
	Height      int
	// PipePath is the FIFO connecting capture tool and transcoder.
	PipePath string
	// OutputDir and FramePrefix control where the transcoder writes
	// <prefix>_<timestamp>.jpg artifacts.
	OutputDir   string
	FramePrefix string
}

// Pipeline is one running capture+transcode pair. The real implementation
// launches OS processes; tests inject a fake so the supervisor's restart
// logic runs without any external binaries.
type Pipeline interface {
	// Start launches the pipeline. An error here means nothing is running.
	Start() error
	// Alive reports whether the transcoder process is still executing.
	Alive() bool
	// Terminate asks the pipeline processes to exit.
	Terminate() error
	// Wait blocks until the pipeline has fully exited, at most timeout.
	// It must only be called after Terminate or once Alive is false.
	Wait(timeout time.Duration) error
}

// Factory builds a fresh Pipeline for a launch or relaunch.
type Factory func(Spec) Pipeline
