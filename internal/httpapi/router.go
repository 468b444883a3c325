// Package httpapi exposes the explorer over HTTP: the three JSON endpoints
// used by the visualization front-end, the landing page with its static
// assets, and operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/pipeline"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// Reloader replaces the store contents with a tissue dataset.
type Reloader interface {
	Reload(ctx context.Context, tissue string) (pipeline.Report, error)
}

// GraphAssembler builds the visualization graph.
type GraphAssembler interface {
	Assemble(ctx context.Context) (*protein.Graph, error)
}

// PropertyResolver looks up one protein by gene id.
type PropertyResolver interface {
	ByID(ctx context.Context, id int64) (*protein.Lookup, error)
}

// ReadinessChecker reports whether the store can be reached.
type ReadinessChecker interface {
	Verify(ctx context.Context) error
}

// Options holds the filesystem and CORS settings of the router.
type Options struct {
	// TemplateDir holds index.html. Empty disables the landing page.
	TemplateDir string
	// StaticDir is served at the URL root. Empty disables static files.
	StaticDir string
	// AllowedOrigins enables CORS for the listed origins. Empty disables it.
	AllowedOrigins []string
}

// Router creates and configures the HTTP router
type Router struct {
	reloader  Reloader
	assembler GraphAssembler
	resolver  PropertyResolver
	gate      *pipeline.Gate
	ready     ReadinessChecker
	metrics   *observability.Collector
	logger    *zap.Logger
	opts      Options
}

// NewRouter creates a new router instance. Reads run as shared sections of
// gate so they wait out any reload in flight.
func NewRouter(
	reloader Reloader,
	assembler GraphAssembler,
	resolver PropertyResolver,
	gate *pipeline.Gate,
	ready ReadinessChecker,
	metrics *observability.Collector,
	logger *zap.Logger,
	opts Options,
) *Router {
	return &Router{
		reloader:  reloader,
		assembler: assembler,
		resolver:  resolver,
		gate:      gate,
		ready:     ready,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(rt.logger))
	router.Use(Metrics(rt.metrics))

	if len(rt.opts.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Get("/load-data/{tissue}", rt.loadData)
	router.Get("/get-graph", rt.getGraph)
	router.Get("/protein-properties/{proteinId}", rt.proteinProperties)
	router.Get("/", rt.index)

	if rt.opts.StaticDir != "" {
		router.NotFound(http.FileServer(staticFS{http.Dir(rt.opts.StaticDir)}).ServeHTTP)
	}

	return router
}
