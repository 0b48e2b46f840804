// Package main provides the entry point for the recorder agent.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldnote/recorder-agent/internal/di"
)

//nolint:gocritic // os.Exit is intentional, critical cleanup done explicitly
func main() {
	baseDir := os.Getenv("RECORDER_AGENT_BASE_DIR")
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve home directory: %v\n", err)
			os.Exit(1)
		}
		baseDir = home + "/.recorder-agent"
	}

	injector := di.NewContainer(baseDir)

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start recorder agent: %v\n", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := injector.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		os.Exit(1)
	}
}
