package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/projection"
	"github.com/rafaeljc/flagscope/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	// maxPage keeps (page-1)*pageSize inside int32 for every allowed page size.
	maxPage = math.MaxInt32 / maxPageSize
)

// handleCreateDatafile stores an uploaded datafile once it parses and projects.
// The syncer publishes it to the serving cache on its next cycle.
func (a *API) handleCreateDatafile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.opts.MaxDatafileBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			observability.DatafileUploadsTotal.WithLabelValues("invalid").Inc()
			writeError(w, r, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
				fmt.Sprintf("Datafile exceeds %d bytes", tooLarge.Limit))
			return
		}
		log.Warn("failed to read request body", slog.String("error", err.Error()))
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "Failed to read request body")
		return
	}

	cfg, err := datafile.Parse(body)
	if err != nil {
		observability.DatafileUploadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	view := projection.NewService(log, cfg).Config()
	if view == nil {
		observability.DatafileUploadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "Datafile cannot be projected")
		return
	}
	if view.SDKKey == "" {
		observability.DatafileUploadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "Datafile must declare an sdkKey")
		return
	}

	d := &store.Datafile{
		SDKKey:         view.SDKKey,
		Revision:       view.Revision,
		EnvironmentKey: view.EnvironmentKey,
		Fingerprint:    datafile.Fingerprint(body),
		Document:       body,
	}

	if err := a.datafiles.CreateDatafile(r.Context(), d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			observability.DatafileUploadsTotal.WithLabelValues("duplicate").Inc()
			writeError(w, r, http.StatusConflict, ErrCodeConflict, "This datafile is already stored for the sdk key")
			return
		}
		observability.DatafileUploadsTotal.WithLabelValues("error").Inc()
		log.Error("failed to store datafile", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to store datafile")
		return
	}

	observability.DatafileUploadsTotal.WithLabelValues("created").Inc()
	log.Info("datafile stored",
		slog.String("sdk_key", d.SDKKey),
		slog.String("revision", d.Revision),
		slog.Int64("datafile_id", d.ID),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, datafileResponse(d))
}

// handleListRevisions pages through the upload history of an SDK key, newest first.
// Out-of-range page values are clamped; non-integers are rejected.
func (a *API) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	sdkKey := chi.URLParam(r, "sdkKey")

	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidQuery, err.Error())
		return
	}
	pageSize, err := parseOptionalInt(r, "page_size", defaultPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidQuery, err.Error())
		return
	}

	page = min(max(page, 1), maxPage)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	list, total, err := a.datafiles.ListRevisions(r.Context(), sdkKey, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Error("failed to list datafile revisions", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to list revisions")
		return
	}

	data := make([]Datafile, len(list))
	for i, d := range list {
		data[i] = datafileResponse(d)
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PaginatedResponse{
		Data: data,
		Pagination: Pagination{
			TotalItems:  total,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	})
}

// parseOptionalInt returns def when the parameter is absent and an error when it is
// present but not an integer.
func parseOptionalInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return v, nil
}
