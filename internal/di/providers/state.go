package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/progress"
)

// ProvideStore provides the persisted batch-state store, loaded from
// "<baseDir>/state.json".
func ProvideStore(i do.Injector) (*ingeststate.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ingeststate.New(cfg.App.BaseDir)
}

// ProvideCancelRegistry provides the process-wide, per-batch cancellation
// registry the orchestrator consults at every phase boundary.
func ProvideCancelRegistry(i do.Injector) (*ingeststate.CancelRegistry, error) {
	return ingeststate.NewCancelRegistry(), nil
}

// ProgressBusHandle wraps progress.Bus with Shutdownable so the event
// fan-out goroutine and every connected SSE client stop on shutdown.
type ProgressBusHandle struct {
	*progress.Bus
}

// Shutdown implements do.Shutdownable.
func (h *ProgressBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.Bus.Shutdown(ctx)
	return nil
}

// ProvideProgressBus provides the shared progress event bus and starts
// its broadcast loop.
func ProvideProgressBus(i do.Injector) (*ProgressBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	bus := progress.NewBus(log.Logger)
	go bus.Start(context.Background())
	return &ProgressBusHandle{Bus: bus}, nil
}
