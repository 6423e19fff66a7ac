// Package testutil provides helpers for handler, middleware and scenario tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idregistry/pkg/platform/httputil"
)

// NewJSONRequest builds a request whose body is body encoded as JSON.
// A nil body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err, "encode request body")
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRawRequest builds a JSON request from a literal body, for malformed input.
func NewRawRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON decodes the response body into a T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "decode response body: %s", rr.Body.String())
	return v
}

// DecodeError decodes an error response body.
func DecodeError(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	return DecodeJSON[httputil.ErrorResponse](t, rr)
}

// AssertStatus checks the response status, printing the body on mismatch.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rr.Code, "unexpected status, body: %s", rr.Body.String())
}

// AssertError checks the status and the error code of an error response.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rr, status)
	assert.Equal(t, code, DecodeError(t, rr).Error, "unexpected error code")
}

// AssertJSONField checks one top-level field of a JSON object response.
// Numbers decode as float64.
func AssertJSONField(t *testing.T, rr *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	body := DecodeJSON[map[string]any](t, rr)
	assert.Equal(t, want, body[key], "unexpected value for %q", key)
}

// API sends authenticated requests to a router. Token mints the bearer
// token for a caller principal.
type API struct {
	T       *testing.T
	Handler http.Handler
	Token   func(principal string) string
}

// Do sends body as JSON on behalf of caller. An empty caller sends no
// Authorization header.
func (a *API) Do(method, path, caller string, body any) *httptest.ResponseRecorder {
	a.T.Helper()
	req := NewJSONRequest(a.T, method, path, body)
	if caller != "" {
		req = WithBearer(req, a.Token(caller))
	}
	return Serve(a.Handler, req)
}
