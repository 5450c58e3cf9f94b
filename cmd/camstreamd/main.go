package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wachiwi/camstream/pkg/capture"
	"github.com/wachiwi/camstream/pkg/framestore"
	"github.com/wachiwi/camstream/pkg/logger"
	"github.com/wachiwi/camstream/pkg/relay"
	"github.com/wachiwi/camstream/pkg/telemetry"
)

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		port      = flag.Int("port", envInt("CAMSTREAM_PORT", 5000), "TCP port to listen on")
		camera    = flag.Int("camera", envInt("CAMSTREAM_CAMERA", 0), "camera index passed to the capture tool")
		fps       = flag.Int("fps", 30, "capture frame rate")
		width     = flag.Int("width", 640, "capture width")
		height    = flag.Int("height", 480, "capture height")
		framesDir = flag.String("frames-dir", envStr("CAMSTREAM_FRAMES_DIR", "/tmp/camstream/frames"), "directory the transcoder writes JPEG frames into")
		pipePath  = flag.String("pipe", envStr("CAMSTREAM_PIPE", "/tmp/camstream/camera.pipe"), "named pipe between capture tool and transcoder")
		prefix    = flag.String("frame-prefix", "frame", "frame filename prefix")
		retention = flag.Int("retention", envInt("CAMSTREAM_RETENTION", 10), "newest frames kept on disk after a prune pass")
		poll      = flag.Duration("poll-interval", 50*time.Millisecond, "frame poll interval per stream client")
		prune     = flag.Duration("prune-interval", 5*time.Second, "cleanup cadence inside an active stream")
		monitor   = flag.Duration("monitor-interval", time.Second, "pipeline liveness check interval")
		otlp      = flag.String("otlp-endpoint", os.Getenv("CAMSTREAM_OTLP_ENDPOINT"), "OTLP/gRPC endpoint for metrics (empty disables telemetry)")
	)
	flag.Parse()

	logger.Setup()
	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, "camstreamd", *otlp)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", "error", err)
	}
	metrics := telemetry.NewMetrics()

	store, err := framestore.NewDirStore(*framesDir, *prefix)
	if err != nil {
		logger.Fatal("Failed to open frame store", "error", err)
	}

	supervisor := capture.NewSupervisor(capture.Config{
		Spec: capture.Spec{
			CameraIndex: *camera,
			FPS:         *fps,
			Width:       *width,
			Height:      *height,
			PipePath:    *pipePath,
			OutputDir:   *framesDir,
			FramePrefix: *prefix,
		},
		MonitorInterval: *monitor,
		Metrics:         metrics,
	})
	if err := supervisor.Start(ctx); err != nil {
		logger.Fatal("Failed to start capture pipeline", "error", err)
	}

	server := relay.NewServer(relay.Config{
		Addr:          fmt.Sprintf(":%d", *port),
		Retention:     *retention,
		PollInterval:  *poll,
		PruneInterval: *prune,
	}, store, supervisor, metrics)
	if err := server.Start(ctx); err != nil {
		supervisor.Stop()
		logger.Fatal("Failed to start relay server", "error", err)
	}
	slog.Info("Camera stream server started",
		"port", *port,
		"stream", fmt.Sprintf("http://localhost:%d/stream", *port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Received signal, shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Relay shutdown incomplete", "error", err)
	}
	supervisor.Stop()
	store.Clear()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry shutdown failed", "error", err)
	}
	slog.Info("Server stopped")
}
