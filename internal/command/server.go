// Package command exposes the agent's operations as a loopback HTTP API:
// one JSON operation per host-invocable command, plus a Server-Sent
// Events stream of progress events. The host UI is the only expected
// client, so the surface trusts its caller and adds no auth layer beyond
// binding to localhost.
package command

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/hashcopy"
	"github.com/fieldnote/recorder-agent/internal/http/response"
	"github.com/fieldnote/recorder-agent/internal/ingeststate"
	"github.com/fieldnote/recorder-agent/internal/orchestrator"
	"github.com/fieldnote/recorder-agent/internal/preflight"
	"github.com/fieldnote/recorder-agent/internal/progress"
	"github.com/fieldnote/recorder-agent/internal/scanner"
	"github.com/fieldnote/recorder-agent/internal/transcode"
)

// Server is the agent's loopback command surface.
type Server struct {
	router *chi.Mux
	api    huma.API
	logger *slog.Logger

	scanner      *scanner.Scanner
	hasher       *hashcopy.Hasher
	transcoder   *transcode.Transcoder
	preflight    *preflight.Client
	orchestrator *orchestrator.Orchestrator
	store        *ingeststate.Store
	settings     *config.SettingsStore
	credentials  *config.CredentialsStore
	bus          *progress.Bus
	cancel       *ingeststate.CancelRegistry
}

// Deps bundles everything the command surface dispatches to.
type Deps struct {
	Scanner      *scanner.Scanner
	Hasher       *hashcopy.Hasher
	Transcoder   *transcode.Transcoder
	Preflight    *preflight.Client
	Orchestrator *orchestrator.Orchestrator
	Store        *ingeststate.Store
	Settings     *config.SettingsStore
	Credentials  *config.CredentialsStore
	Bus          *progress.Bus
	Cancel       *ingeststate.CancelRegistry
	Logger       *slog.Logger
}

// NewServer builds the chi+huma router and registers every command.
func NewServer(deps Deps) *Server {
	s := &Server{
		logger:       deps.Logger,
		scanner:      deps.Scanner,
		hasher:       deps.Hasher,
		transcoder:   deps.Transcoder,
		preflight:    deps.Preflight,
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		settings:     deps.Settings,
		credentials:  deps.Credentials,
		bus:          deps.Bus,
		cancel:       deps.Cancel,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Recorder Agent Command API", "1.0.0")
	s.api = humachi.New(s.router, humaConfig)

	s.registerVolumeRoutes()
	s.registerPipelineRoutes()
	s.registerImportRoutes()
	s.registerConfigRoutes()
	s.registerBatchRoutes()

	s.router.Get("/events", (&progressStreamHandler{bus: s.bus}).ServeHTTP)
	s.router.Get("/healthz", s.handleHealthz)

	return s
}

// handleHealthz is a plain chi handler outside the huma operation set,
// for a host process supervisor polling agent liveness without going
// through the typed command contract.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	active := s.cancel.Active()
	if active == nil {
		active = []string{}
	}
	response.Success(w, map[string]any{
		"status":            "ok",
		"cancellingBatches": active,
	}, s.logger)
}

// Handler returns the root http.Handler for the command surface.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}
