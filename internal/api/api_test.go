package api_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/flagscope/internal/api"
	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/datafile/datafiletest"
	"github.com/rafaeljc/flagscope/internal/projection"
	"github.com/rafaeljc/flagscope/internal/store"
	"github.com/rafaeljc/flagscope/internal/testsupport"
	"github.com/rafaeljc/flagscope/internal/viewer"
)

const testAPIKey = "operator-secret-key"

func apiKeyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Fakes
// =============================================================================

type memoryStore struct {
	mu        sync.Mutex
	datafiles []*store.Datafile
	err       error
}

func (m *memoryStore) CreateDatafile(_ context.Context, d *store.Datafile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.datafiles {
		if existing.SDKKey == d.SDKKey && existing.Fingerprint == d.Fingerprint {
			return fmt.Errorf("wrapped: %w", store.ErrDuplicate)
		}
	}
	d.ID = int64(len(m.datafiles) + 1)
	d.CreatedAt = time.Now().UTC()
	m.datafiles = append(m.datafiles, d)
	return nil
}

func (m *memoryStore) ListRevisions(_ context.Context, sdkKey string, limit, offset int) ([]*store.Datafile, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	if limit < 0 || offset < 0 {
		return nil, 0, errors.New("LIMIT and OFFSET must not be negative")
	}
	var matching []*store.Datafile
	for i := len(m.datafiles) - 1; i >= 0; i-- {
		if m.datafiles[i].SDKKey == sdkKey {
			matching = append(matching, m.datafiles[i])
		}
	}
	total := int64(len(matching))
	if offset >= len(matching) {
		return []*store.Datafile{}, total, nil
	}
	end := min(offset+limit, len(matching))
	return matching[offset:end], total, nil
}

type staticViews struct {
	entries map[string]*cache.ViewEntry
	err     error
}

func (s staticViews) View(_ context.Context, sdkKey string) (*cache.ViewEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.entries[sdkKey]
	if !ok {
		return nil, fmt.Errorf("sdk key %q: %w", sdkKey, viewer.ErrNotFound)
	}
	return e, nil
}

func fixtureViews(t *testing.T) staticViews {
	t.Helper()
	doc := datafiletest.Document()
	view := projection.Project(datafiletest.Config(t))
	require.NotNil(t, view)
	return staticViews{entries: map[string]*cache.ViewEntry{
		"fixture-sdk-key": {Fingerprint: datafile.Fingerprint(doc), View: view},
	}}
}

func newTestAPI(t *testing.T, st api.DatafileStore, views api.ViewProvider) *api.API {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewAPI(log, st, views, api.Options{APIKeyHash: apiKeyHash(testAPIKey), MaxDatafileBytes: 1 << 20})
}

func do(a *api.API, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func authed() map[string]string {
	return map[string]string{api.APIKeyHeader: testAPIKey}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// Construction
// =============================================================================

func TestNewAPI_Panics(t *testing.T) {
	t.Parallel()

	views := staticViews{}
	st := &memoryStore{}

	assert.Panics(t, func() { api.NewAPI(nil, nil, views, api.Options{SkipAuth: true}) })
	assert.Panics(t, func() { api.NewAPI(nil, st, nil, api.Options{SkipAuth: true}) })
	assert.Panics(t, func() { api.NewAPI(nil, st, views, api.Options{}) })
	assert.NotPanics(t, func() { api.NewAPI(nil, st, views, api.Options{SkipAuth: true}) })
}

func TestHealth(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t, &memoryStore{}, staticViews{})

	rr := do(a, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

// =============================================================================
// Authentication
// =============================================================================

func TestAuthentication(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{name: "Should reject a missing key", headers: nil, wantCode: http.StatusUnauthorized},
		{name: "Should reject a wrong key", headers: map[string]string{api.APIKeyHeader: "nope"}, wantCode: http.StatusUnauthorized},
		{name: "Should accept the key header", headers: authed(), wantCode: http.StatusOK},
		{name: "Should accept a bearer token", headers: map[string]string{"Authorization": "Bearer " + testAPIKey}, wantCode: http.StatusOK},
		{name: "Should reject other auth schemes", headers: map[string]string{"Authorization": "Basic " + testAPIKey}, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newTestAPI(t, &memoryStore{}, staticViews{})

			rr := do(a, http.MethodGet, "/api/v1/datafiles/sdk/revisions", nil, tt.headers)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, api.ErrCodeUnauthorized, decodeError(t, rr).Code)
			}
		})
	}

	t.Run("Should not protect sdk read endpoints", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/config", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

// =============================================================================
// POST /datafiles
// =============================================================================

func TestCreateDatafile(t *testing.T) {
	t.Parallel()

	t.Run("Should store a valid datafile", func(t *testing.T) {
		t.Parallel()
		// Arrange
		st := &memoryStore{}
		a := newTestAPI(t, st, staticViews{})
		doc := datafiletest.Document()

		// Act
		rr := do(a, http.MethodPost, "/api/v1/datafiles", doc, authed())

		// Assert
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var resp api.Datafile
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "fixture-sdk-key", resp.SDKKey)
		assert.Equal(t, "1", resp.Revision)
		assert.Equal(t, "production", resp.EnvironmentKey)
		assert.Equal(t, datafile.Fingerprint(doc), resp.Fingerprint)
		require.Len(t, st.datafiles, 1)
		assert.Equal(t, doc, st.datafiles[0].Document)
	})

	t.Run("Should return 409 for a duplicate upload", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, staticViews{})
		require.Equal(t, http.StatusCreated, do(a, http.MethodPost, "/api/v1/datafiles", datafiletest.Document(), authed()).Code)

		rr := do(a, http.MethodPost, "/api/v1/datafiles", datafiletest.Document(), authed())

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, api.ErrCodeConflict, decodeError(t, rr).Code)
	})

	invalid := []struct {
		name string
		body []byte
	}{
		{name: "Should reject malformed JSON", body: []byte(`{"version":`)},
		{name: "Should reject a document missing sections", body: []byte(`{"version": "4", "revision": "1"}`)},
		{name: "Should reject an unsupported version", body: []byte(`{"version": "1"}`)},
		{name: "Should reject a datafile without sdkKey", body: bytes.Replace(datafiletest.Document(), []byte(`"sdkKey": "fixture-sdk-key"`), []byte(`"sdkKey": ""`), 1)},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := &memoryStore{}
			a := newTestAPI(t, st, staticViews{})

			rr := do(a, http.MethodPost, "/api/v1/datafiles", tt.body, authed())

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, api.ErrCodeInvalidInput, decodeError(t, rr).Code)
			assert.Empty(t, st.datafiles)
		})
	}

	t.Run("Should reject bodies over the limit", func(t *testing.T) {
		t.Parallel()
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		a := api.NewAPI(log, &memoryStore{}, staticViews{}, api.Options{SkipAuth: true, MaxDatafileBytes: 64})

		rr := do(a, http.MethodPost, "/api/v1/datafiles", datafiletest.Document(), nil)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Equal(t, api.ErrCodeTooLarge, decodeError(t, rr).Code)
	})

	t.Run("Should return 500 when the store fails", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{err: errors.New("disk full")}, staticViews{})

		rr := do(a, http.MethodPost, "/api/v1/datafiles", datafiletest.Document(), authed())

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		resp := decodeError(t, rr)
		assert.Equal(t, api.ErrCodeInternal, resp.Code)
		assert.NotContains(t, resp.Message, "disk full")
	})
}

// =============================================================================
// GET /datafiles/{sdkKey}/revisions
// =============================================================================

func TestListRevisions(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *api.API {
		t.Helper()
		st := &memoryStore{}
		for i := range 25 {
			require.NoError(t, st.CreateDatafile(context.Background(), &store.Datafile{
				SDKKey:      "sdk",
				Revision:    fmt.Sprint(i + 1),
				Fingerprint: fmt.Sprintf("fp-%d", i),
			}))
		}
		return newTestAPI(t, st, staticViews{})
	}

	tests := []struct {
		name         string
		query        string
		wantCode     int
		wantPage     int
		wantSize     int
		wantItems    int
		wantFirstRev string
	}{
		{name: "Should use defaults", query: "", wantCode: 200, wantPage: 1, wantSize: 10, wantItems: 10, wantFirstRev: "25"},
		{name: "Should return the last partial page", query: "?page=3", wantCode: 200, wantPage: 3, wantSize: 10, wantItems: 5, wantFirstRev: "5"},
		{name: "Should clamp the page size", query: "?page_size=1000", wantCode: 200, wantPage: 1, wantSize: 100, wantItems: 25, wantFirstRev: "25"},
		{name: "Should clamp a negative page", query: "?page=-2&page_size=5", wantCode: 200, wantPage: 1, wantSize: 5, wantItems: 5, wantFirstRev: "25"},
		{name: "Should return an empty page past the end", query: "?page=9", wantCode: 200, wantPage: 9, wantSize: 10, wantItems: 0},
		{name: "Should clamp a page that would overflow the offset", query: "?page=4611686018427387904", wantCode: 200, wantPage: 21474836, wantSize: 10, wantItems: 0},
		{name: "Should reject a non-integer page", query: "?page=banana", wantCode: 400},
		{name: "Should reject a non-integer page size", query: "?page_size=ten", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := seed(t)

			rr := do(a, http.MethodGet, "/api/v1/datafiles/sdk/revisions"+tt.query, nil, authed())

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, api.ErrCodeInvalidQuery, decodeError(t, rr).Code)
				return
			}

			var resp struct {
				Data       []api.Datafile `json:"data"`
				Pagination api.Pagination `json:"pagination"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, int64(25), resp.Pagination.TotalItems)
			assert.Equal(t, tt.wantPage, resp.Pagination.CurrentPage)
			assert.Equal(t, tt.wantSize, resp.Pagination.PageSize)
			assert.Len(t, resp.Data, tt.wantItems)
			if tt.wantItems > 0 {
				assert.Equal(t, tt.wantFirstRev, resp.Data[0].Revision)
			}
		})
	}

	t.Run("Should report zero pages for an unknown sdk key", func(t *testing.T) {
		t.Parallel()
		a := seed(t)

		rr := do(a, http.MethodGet, "/api/v1/datafiles/other/revisions", nil, authed())

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"data":[],"pagination":{"total_items":0,"total_pages":0,"current_page":1,"page_size":10}}`, rr.Body.String())
	})
}

// =============================================================================
// SDK read endpoints
// =============================================================================

func TestSDKEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("Should serve the full view with an ETag", func(t *testing.T) {
		t.Parallel()
		views := fixtureViews(t)
		a := newTestAPI(t, &memoryStore{}, views)

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/config", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `"`+views.entries["fixture-sdk-key"].Fingerprint+`"`, rr.Header().Get("ETag"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "1", body["revision"])
		assert.Equal(t, "fixture-sdk-key", body["sdkKey"])
		assert.Contains(t, body["featuresMap"], "test_feature_in_experiment")
	})

	t.Run("Should answer 304 when the ETag matches", func(t *testing.T) {
		t.Parallel()
		views := fixtureViews(t)
		a := newTestAPI(t, &memoryStore{}, views)
		etag := `"` + views.entries["fixture-sdk-key"].Fingerprint + `"`

		for _, header := range []string{etag, `W/` + etag, `"other", ` + etag, "*"} {
			rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/config", nil, map[string]string{"If-None-Match": header})

			assert.Equal(t, http.StatusNotModified, rr.Code, header)
			assert.Empty(t, rr.Body.String())
		}

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/config", nil, map[string]string{"If-None-Match": `"stale"`})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Should serve single experiments and features", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/experiments/test_experiment", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var exp projection.ExperimentView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exp))
		assert.Equal(t, "111127", exp.ID)
		assert.Contains(t, exp.VariationsMap, "variation")

		rr = do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/features/test_feature_in_rollout", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var feature projection.FeatureView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feature))
		assert.Equal(t, "91112", feature.ID)
		assert.Len(t, feature.DeliveryRules, 3)
	})

	t.Run("Should return 404 for unknown keys inside a view", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

		for _, path := range []string{"experiments/nope", "features/nope"} {
			rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/"+path, nil, nil)

			assert.Equal(t, http.StatusNotFound, rr.Code, path)
			assert.Equal(t, api.ErrCodeNotFound, decodeError(t, rr).Code)
		}
	})

	t.Run("Should serve list sections", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/attributes", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[{"id":"111094","key":"test_attribute"}]`, rr.Body.String())

		rr = do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/events", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[{"id":"111095","key":"test_event","experimentIds":["111127"]}]`, rr.Body.String())

		rr = do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/audiences", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var audiences []projection.AudienceView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &audiences))
		assert.NotEmpty(t, audiences)
	})

	t.Run("Should serve the source datafile verbatim", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

		rr := do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/datafile", nil, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, string(datafiletest.Document()), rr.Body.String())
	})

	errorCases := []struct {
		name     string
		views    staticViews
		sdkKey   string
		wantCode int
		wantErr  string
	}{
		{name: "Should return 404 for an unpublished sdk key", views: staticViews{}, sdkKey: "missing", wantCode: 404, wantErr: api.ErrCodeNotFound},
		{name: "Should return 500 for an invalid published config", views: staticViews{err: viewer.ErrInvalidConfig}, sdkKey: "x", wantCode: 500, wantErr: api.ErrCodeInternal},
		{name: "Should return 503 when the cache is unreachable", views: staticViews{err: errors.New("dial tcp: refused")}, sdkKey: "x", wantCode: 503, wantErr: api.ErrCodeUnavailable},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newTestAPI(t, &memoryStore{}, tt.views)

			rr := do(a, http.MethodGet, "/api/v1/sdks/"+tt.sdkKey+"/config", nil, nil)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rr).Code)
		})
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetrics(t *testing.T) {
	a := newTestAPI(t, &memoryStore{}, fixtureViews(t))

	t.Run("Should count requests by route pattern", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "path": "/api/v1/sdks/{sdkKey}/config", "code": "200"}
		testsupport.AssertMetricDelta(t, "flagscope_api_http_requests_total", labels, 1, func() {
			do(a, http.MethodGet, "/api/v1/sdks/fixture-sdk-key/config", nil, nil)
		})
	})

	t.Run("Should count uploads by outcome", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "flagscope_api_datafile_uploads_total", map[string]string{"status": "invalid"}, 1, func() {
			do(a, http.MethodPost, "/api/v1/datafiles", []byte(`[]`), authed())
		})
		testsupport.AssertMetricDelta(t, "flagscope_api_datafile_uploads_total", map[string]string{"status": "created"}, 1, func() {
			do(a, http.MethodPost, "/api/v1/datafiles", datafiletest.Document(), authed())
		})
	})

	t.Run("Should label unknown routes as unmatched", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "path": "unmatched", "code": "404"}
		testsupport.AssertMetricDelta(t, "flagscope_api_http_requests_total", labels, 1, func() {
			do(a, http.MethodGet, "/nowhere", nil, nil)
		})
	})
}
