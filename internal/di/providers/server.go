package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/command"
	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
)

// commandListenAddr is the loopback address the command surface binds
// to. The host UI is the only expected client.
const commandListenAddr = "127.0.0.1:8913"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer builds the command surface and starts it listening
// on the loopback address.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	srv := command.NewServer(command.Deps{
		Scanner:      do.MustInvoke[*scanner.Scanner](i),
		Hasher:       do.MustInvoke[*hashcopy.Hasher](i),
		Transcoder:   do.MustInvoke[*transcode.Transcoder](i),
		Preflight:    do.MustInvoke[*preflight.Client](i),
		Orchestrator: do.MustInvoke[*orchestrator.Orchestrator](i),
		Store:        do.MustInvoke[*ingeststate.Store](i),
		Settings:     do.MustInvoke[*config.SettingsStore](i),
		Credentials:  do.MustInvoke[*config.CredentialsStore](i),
		Bus:          do.MustInvoke[*ProgressBusHandle](i).Bus,
		Cancel:       do.MustInvoke[*ingeststate.CancelRegistry](i),
		Logger:       log.Logger,
	})

	httpServer := &http.Server{
		Addr:    commandListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("command server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("command server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: httpServer}, nil
}
