package providers

import (
	"github.com/samber/do/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/logger"
)

// ProvideConfig loads the agent's configuration from baseDir's env,
// flags, and on-disk config.json/credentials.json.
func ProvideConfig(baseDir string) func(do.Injector) (*config.Config, error) {
	return func(i do.Injector) (*config.Config, error) {
		return config.Load(baseDir)
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("starting recorder agent",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"base_dir", cfg.App.BaseDir,
	)

	return log, nil
}

// ProvideSettingsStore provides the runtime-mutable, disk-backed settings
// store used by the command surface's get_config/save_config handlers.
func ProvideSettingsStore(i do.Injector) (*config.SettingsStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return config.NewSettingsStore(cfg.App.BaseDir, cfg.Settings), nil
}

// ProvideCredentialsStore provides the runtime-mutable, disk-backed
// credentials store used by get_auth_credentials/save_auth_credentials.
func ProvideCredentialsStore(i do.Injector) (*config.CredentialsStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return config.NewCredentialsStore(cfg.App.BaseDir, cfg.Credentials), nil
}
