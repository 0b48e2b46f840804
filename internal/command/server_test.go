package command

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/progress"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
	"github.com/fieldnote/recorder-agent/internal/upload"
)

// setupTestServer wires every command dependency against a temp directory
// and a logger that discards output, then returns a ready Server plus a
// cleanup func that stops its background goroutines.
func setupTestServer(t *testing.T) (s *Server, cleanup func()) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := ingeststate.New(dir)
	require.NoError(t, err)

	settings := config.NewSettingsStore(dir, config.Settings{
		ServerUrl:       "https://ingest.example.com",
		MaxStorageGb:    50,
		FfmpegPath:      "ffmpeg",
		WatchIntervalMs: 1000,
	})
	credentials := config.NewCredentialsStore(dir, config.Credentials{})

	bus := progress.NewBus(logger)
	ctx, cancelBus := context.WithCancel(context.Background())
	go bus.Start(ctx)

	cancelRegistry := ingeststate.NewCancelRegistry()

	sc := scanner.New(logger)
	hasher := hashcopy.New(bus)
	transcoder := transcode.New(logger, "ffmpeg")
	preflightClient := preflight.New("https://ingest.example.com", preflight.Credentials{})
	uploader := upload.New(preflightClient, store, bus, logger)

	orch := orchestrator.New(dir, store, cancelRegistry, sc, hasher, transcoder, preflightClient, uploader, bus, settings, logger)

	s = NewServer(Deps{
		Scanner:      sc,
		Hasher:       hasher,
		Transcoder:   transcoder,
		Preflight:    preflightClient,
		Orchestrator: orch,
		Store:        store,
		Settings:     settings,
		Credentials:  credentials,
		Bus:          bus,
		Cancel:       cancelRegistry,
		Logger:       logger,
	})

	cleanup = func() {
		cancelBus()
		preflightClient.Close()
	}
	return s, cleanup
}
