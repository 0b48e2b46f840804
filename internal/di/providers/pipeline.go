package providers

import (
	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
	"github.com/fieldnote/recorder-agent/internal/upload"
)

// ProvideScanner provides the directory scanner used to enumerate audio
// files on a mounted recorder volume.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return scanner.New(log.Logger), nil
}

// ProvideHasher provides the copy-with-hash helper, wired to the progress
// bus so staging progress is observable over the SSE stream.
func ProvideHasher(i do.Injector) (*hashcopy.Hasher, error) {
	busHandle := do.MustInvoke[*ProgressBusHandle](i)
	return hashcopy.New(busHandle.Bus), nil
}

// ProvideTranscoder provides the ffmpeg-backed transcoder, using the
// configured ffmpeg path (or bare "ffmpeg" to resolve via PATH).
func ProvideTranscoder(i do.Injector) (*transcode.Transcoder, error) {
	log := do.MustInvoke[*logger.Logger](i)
	settings := do.MustInvoke[*config.SettingsStore](i)
	return transcode.New(log.Logger, settings.Get().FfmpegPath), nil
}

// ProvidePreflightClient provides the HTTP client used for the
// preflight-batch and presign calls against the ingest server, seeded
// with whatever credentials are on disk at startup.
func ProvidePreflightClient(i do.Injector) (*preflight.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	settings := do.MustInvoke[*config.SettingsStore](i)
	credentials := do.MustInvoke[*config.CredentialsStore](i)

	creds := credentials.Get()
	client := preflight.New(settings.Get().ServerUrl, preflight.Credentials{
		ClientID:     creds.ClientId,
		ClientSecret: creds.ClientSecret,
	})

	agentID, err := config.LoadOrCreateAgentID(cfg.App.BaseDir)
	if err != nil {
		return nil, err
	}
	client.SetAgentID(agentID)

	return client, nil
}

// ProvideUploader provides the single-shot and multipart upload driver.
func ProvideUploader(i do.Injector) (*upload.Uploader, error) {
	preflightClient := do.MustInvoke[*preflight.Client](i)
	store := do.MustInvoke[*ingeststate.Store](i)
	busHandle := do.MustInvoke[*ProgressBusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return upload.New(preflightClient, store, busHandle.Bus, log.Logger), nil
}

// ProvideOrchestrator provides the batch pipeline orchestrator, wired to
// every staging, preflight, and upload component above.
func ProvideOrchestrator(i do.Injector) (*orchestrator.Orchestrator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store := do.MustInvoke[*ingeststate.Store](i)
	cancelRegistry := do.MustInvoke[*ingeststate.CancelRegistry](i)
	sc := do.MustInvoke[*scanner.Scanner](i)
	hasher := do.MustInvoke[*hashcopy.Hasher](i)
	transcoder := do.MustInvoke[*transcode.Transcoder](i)
	preflightClient := do.MustInvoke[*preflight.Client](i)
	uploader := do.MustInvoke[*upload.Uploader](i)
	busHandle := do.MustInvoke[*ProgressBusHandle](i)
	settings := do.MustInvoke[*config.SettingsStore](i)
	log := do.MustInvoke[*logger.Logger](i)

	return orchestrator.New(cfg.App.BaseDir, store, cancelRegistry, sc, hasher, transcoder, preflightClient, uploader, busHandle.Bus, settings, log.Logger), nil
}
