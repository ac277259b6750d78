package api

import (
	"time"

	"github.com/rafaeljc/flagscope/internal/store"
)

// Machine-readable error codes.
const (
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_INVALID_QUERY_PARAM"
	ErrCodeTooLarge     = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeUnavailable  = "ERR_UNAVAILABLE"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Datafile is the metadata of a stored datafile. The document itself is served by
// the /datafile endpoint.
type Datafile struct {
	ID             int64     `json:"id"`
	SDKKey         string    `json:"sdk_key"`
	Revision       string    `json:"revision"`
	EnvironmentKey string    `json:"environment_key"`
	Fingerprint    string    `json:"fingerprint"`
	CreatedAt      time.Time `json:"created_at"`
}

func datafileResponse(d *store.Datafile) Datafile {
	return Datafile{
		ID:             d.ID,
		SDKKey:         d.SDKKey,
		Revision:       d.Revision,
		EnvironmentKey: d.EnvironmentKey,
		Fingerprint:    d.Fingerprint,
		CreatedAt:      d.CreatedAt,
	}
}

// PaginatedResponse wraps list endpoints using offset pagination.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
