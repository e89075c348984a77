package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/factory"
	"github.com/sogelink-research/ctod/internal/middleware"
	"github.com/sogelink-research/ctod/internal/tms"
)

// Server wires the Terrain Factory and Dataset Registry to chi routes.
type Server struct {
	factory     *factory.Factory
	registry    *dataset.Registry
	defaultTMS  string
	allowDynamic bool
	logger      *slog.Logger
}

// Config holds Server's construction parameters (spec.md §6).
type Config struct {
	Factory        *factory.Factory
	Registry       *dataset.Registry
	DefaultTMS     string
	AllowDynamic   bool // false when the server was started with --no-dynamic
	CORSAllowOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the full chi.Router for the service, mirroring the
// teacher's middleware ordering: request ID, real IP, structured
// logging, panic recovery, security headers, a request-wide timeout,
// then CORS.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTMS == "" {
		cfg.DefaultTMS = tms.WebMercatorQuad
	}

	s := &Server{
		factory:      cfg.Factory,
		registry:     cfg.Registry,
		defaultTMS:   cfg.DefaultTMS,
		allowDynamic: cfg.AllowDynamic,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Timeout(factory.DefaultRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOriginsOrDefault(cfg.CORSAllowOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}))

	r.Get("/status", s.handleStatus)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	if s.allowDynamic {
		r.Get("/tiles/dynamic/layer.json", s.handleDynamicLayerJSON)
		r.Get("/tiles/dynamic/{z}/{x}/{y}.terrain", s.handleDynamicTerrain)
	}
	r.Get("/tiles/{dataset}/layer.json", s.handleNamedLayerJSON)
	r.Get("/tiles/{dataset}/{z}/{x}/{y}.terrain", s.handleNamedTerrain)

	return r
}

func corsOriginsOrDefault(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
