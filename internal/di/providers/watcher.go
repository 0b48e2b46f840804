package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/logger"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/progress"
	"github.com/fieldnote/recorder-agent/internal/volume"
)

// VolumeWatcherHandle wraps volume.Watcher with shutdown capability and
// owns the bridge goroutine that turns mount events into progress.Bus
// events, and, when AutoImport is enabled, into started batches.
type VolumeWatcherHandle struct {
	*volume.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *VolumeWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideVolumeWatcher provides the volume watcher and starts the
// goroutine bridging its events to the progress bus and, on
// AutoImport, to the orchestrator.
func ProvideVolumeWatcher(i do.Injector) (*VolumeWatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	settings := do.MustInvoke[*config.SettingsStore](i)
	busHandle := do.MustInvoke[*ProgressBusHandle](i)
	orch := do.MustInvoke[*orchestrator.Orchestrator](i)

	current := settings.Get()
	w, err := volume.New(log.Logger, volume.Options{
		WatchInterval: current.WatchInterval(),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := w.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	go bridgeVolumeEvents(ctx, w, busHandle.Bus, settings, orch, log.Logger)

	return &VolumeWatcherHandle{Watcher: w, cancel: cancel}, nil
}

func bridgeVolumeEvents(ctx context.Context, w *volume.Watcher, bus *progress.Bus, settings *config.SettingsStore, orch *orchestrator.Orchestrator, log *slog.Logger) {
	for {
		select {
		case event, ok := <-w.Events():
			if !ok {
				return
			}
			handleVolumeEvent(event, bus, settings, orch, log)
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			log.Warn("volume watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func handleVolumeEvent(event volume.Event, bus *progress.Bus, settings *config.SettingsStore, orch *orchestrator.Orchestrator, log *slog.Logger) {
	switch event.Type {
	case volume.EventMountDetected:
		bus.Emit(progress.NewMountDetectedEvent(event.Path, event.Name, event.HasRecorderID))

		if !event.HasRecorderID || !settings.Get().AutoImport {
			return
		}

		recorder, err := volume.IdentifyDevice(event.Path)
		if err != nil {
			log.Warn("failed to identify recorder volume for auto-import", "path", event.Path, "error", err)
			return
		}

		if _, err := orch.StartImport(recorder.DeviceID, event.Path); err != nil {
			log.Warn("auto-import failed to start", "device_id", recorder.DeviceID, "path", event.Path, "error", err)
		}
	case volume.EventMountRemoved:
		bus.Emit(progress.NewMountRemovedEvent(event.Path, event.Name))
	}
}
