// Package di provides dependency injection configuration for the
// recorder agent.
package di

import (
	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/di/providers"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
	"github.com/fieldnote/recorder-agent/internal/upload"
)

// NewContainer creates and configures the DI container with all
// providers, bound to baseDir's config.json/credentials.json/state.json.
func NewContainer(baseDir string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(baseDir))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSettingsStore)
	do.Provide(injector, providers.ProvideCredentialsStore)

	// Persisted state
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCancelRegistry)
	do.Provide(injector, providers.ProvideProgressBus)

	// Pipeline stages
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideHasher)
	do.Provide(injector, providers.ProvideTranscoder)
	do.Provide(injector, providers.ProvidePreflightClient)
	do.Provide(injector, providers.ProvideUploader)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Hardware watcher
	do.Provide(injector, providers.ProvideVolumeWatcher)

	// Command surface
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap triggers lazy initialization of every provided service, in
// dependency order, and returns once the command server and volume
// watcher are both running.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*config.SettingsStore](injector)
	_ = do.MustInvoke[*config.CredentialsStore](injector)

	_ = do.MustInvoke[*ingeststate.Store](injector)
	_ = do.MustInvoke[*ingeststate.CancelRegistry](injector)
	_ = do.MustInvoke[*providers.ProgressBusHandle](injector)

	_ = do.MustInvoke[*scanner.Scanner](injector)
	_ = do.MustInvoke[*hashcopy.Hasher](injector)
	_ = do.MustInvoke[*transcode.Transcoder](injector)
	_ = do.MustInvoke[*preflight.Client](injector)
	_ = do.MustInvoke[*upload.Uploader](injector)
	_ = do.MustInvoke[*orchestrator.Orchestrator](injector)

	_ = do.MustInvoke[*providers.VolumeWatcherHandle](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
