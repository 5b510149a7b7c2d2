// Package serviceutil holds the process plumbing shared by the entry points.
package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext returns a context that lives until Ctrl+C is pressed, pressing it
// a second time exits right away.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("shutting down, interrupt again to force")
		cancel()
		<-sigs
		os.Exit(130)
	}()

	return ctx
}

// ShutdownContext is a short lived context for flushing telemetry once the main context is done.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// StageExitCode logs how a stage ended and returns the exit code the process should end with.
func StageExitCode(stage string, err error) int {
	if err != nil {
		slog.Error("stage failed", "stage", stage, "err", err.Error())
		return 1
	}
	slog.Info("stage done", "stage", stage)
	return 0
}
