package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/viewer"
)

// resolveView loads the view of the SDK key in the path and handles conditional requests.
// It returns nil when a response has already been written.
func (a *API) resolveView(w http.ResponseWriter, r *http.Request) *cache.ViewEntry {
	sdkKey := chi.URLParam(r, "sdkKey")

	e, err := a.views.View(r.Context(), sdkKey)
	if err != nil {
		switch {
		case errors.Is(err, viewer.ErrNotFound):
			writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "No configuration published for this sdk key")
		case errors.Is(err, viewer.ErrInvalidConfig):
			logger.FromContext(r.Context()).Error("published configuration is invalid",
				slog.String("sdk_key", sdkKey),
				slog.String("error", err.Error()),
			)
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Published configuration cannot be projected")
		default:
			logger.FromContext(r.Context()).Error("failed to resolve view",
				slog.String("sdk_key", sdkKey),
				slog.String("error", err.Error()),
			)
			writeError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Configuration is temporarily unavailable")
		}
		return nil
	}

	etag := `"` + e.Fingerprint + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	return e
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	e := a.resolveView(w, r)
	if e == nil {
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, e.View)
}

func (a *API) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	e := a.resolveView(w, r)
	if e == nil {
		return
	}
	exp, ok := e.View.ExperimentsMap[chi.URLParam(r, "key")]
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "Experiment not found")
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, exp)
}

func (a *API) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	e := a.resolveView(w, r)
	if e == nil {
		return
	}
	feature, ok := e.View.FeaturesMap[chi.URLParam(r, "key")]
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "Feature not found")
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, feature)
}

func (a *API) handleListAudiences(w http.ResponseWriter, r *http.Request) {
	if e := a.resolveView(w, r); e != nil {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, e.View.Audiences)
	}
}

func (a *API) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	if e := a.resolveView(w, r); e != nil {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, e.View.Attributes)
	}
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if e := a.resolveView(w, r); e != nil {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, e.View.Events)
	}
}

// handleGetDatafile serves the document the view was projected from, unmodified.
func (a *API) handleGetDatafile(w http.ResponseWriter, r *http.Request) {
	e := a.resolveView(w, r)
	if e == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(e.View.Datafile()))
}
