package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, http.StatusOK, map[string]int{"count": 3})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count": 3}`, rec.Body.String())
}

func TestWriteErrorMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteErrorMessage(rec, http.StatusBadGateway, "provider lookup failed")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error": "provider lookup failed"}`, rec.Body.String())
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"words": 100}`))
		rec := httptest.NewRecorder()

		var dest struct {
			Words int64 `json:"words"`
		}
		ok := ParseJSONOrError(rec, req, &dest)
		assert.True(t, ok)
		assert.Equal(t, int64(100), dest.Words)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`not json`))
		rec := httptest.NewRecorder()

		var dest map[string]interface{}
		ok := ParseJSONOrError(rec, req, &dest)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	req = httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Error(t, gotErr)
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&enforce=true", nil)

	limit, err := ParseQueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	missing, err := ParseQueryInt(req, "offset", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, missing)

	enforce, err := ParseQueryBool(req, "enforce", false)
	require.NoError(t, err)
	assert.True(t, enforce)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 0)
	assert.Error(t, err)
}

func TestRequireNonEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(rec, "value", "email"))

	rec = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(rec, "", "email"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "email is required", body["error"])
}
