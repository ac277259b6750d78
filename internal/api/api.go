// Package api implements the flagscope REST API: datafile uploads and history for
// operators, and read-only projected configuration views for SDK consumers.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/store"
	"github.com/rafaeljc/flagscope/internal/validation"
)

// DatafileStore is the persistence the operator endpoints need.
type DatafileStore interface {
	CreateDatafile(ctx context.Context, d *store.Datafile) error
	ListRevisions(ctx context.Context, sdkKey string, limit, offset int) ([]*store.Datafile, int64, error)
}

// ViewProvider resolves the current projected view of an SDK key.
type ViewProvider interface {
	View(ctx context.Context, sdkKey string) (*cache.ViewEntry, error)
}

var _ DatafileStore = (store.DatafileRepository)(nil)

// defaultMaxDatafileBytes applies when Options leaves the upload limit unset.
const defaultMaxDatafileBytes = 10 << 20

// Options tunes authentication and request limits.
type Options struct {
	// APIKeyHash is the hex SHA-256 of the operator API key.
	APIKeyHash string

	// SkipAuth disables operator authentication. Tests and local development only.
	SkipAuth bool

	// MaxDatafileBytes caps upload bodies.
	MaxDatafileBytes int64
}

// API holds the router and its dependencies.
type API struct {
	Router *chi.Mux

	logger    *slog.Logger
	datafiles DatafileStore
	views     ViewProvider
	opts      Options
}

// NewAPI wires the routes. It panics when a dependency is missing or when
// authentication is enabled without a key hash.
func NewAPI(logger *slog.Logger, datafiles DatafileStore, views ViewProvider, opts Options) *API {
	validation.AssertPresent(datafiles, "datafile store")
	validation.AssertPresent(views, "view provider")
	if !opts.SkipAuth {
		validation.AssertNotEmpty(opts.APIKeyHash, "api key hash")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDatafileBytes <= 0 {
		opts.MaxDatafileBytes = defaultMaxDatafileBytes
	}

	a := &API{
		Router:    chi.NewRouter(),
		logger:    logger,
		datafiles: datafiles,
		views:     views,
		opts:      opts,
	}
	a.configureRoutes()
	return a
}

func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(a.requestLogger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.authenticateAPIKey)

			r.Post("/datafiles", a.handleCreateDatafile)
			r.Get("/datafiles/{sdkKey}/revisions", a.handleListRevisions)
		})

		r.Route("/sdks/{sdkKey}", func(r chi.Router) {
			r.Get("/config", a.handleGetConfig)
			r.Get("/experiments/{key}", a.handleGetExperiment)
			r.Get("/features/{key}", a.handleGetFeature)
			r.Get("/audiences", a.handleListAudiences)
			r.Get("/attributes", a.handleListAttributes)
			r.Get("/events", a.handleListEvents)
			r.Get("/datafile", a.handleGetDatafile)
		})
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
