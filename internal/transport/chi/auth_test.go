package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func authRequest(t *testing.T, keys []string, path, header string) *httptest.ResponseRecorder {
	t.Helper()
	handler := BearerAuthMiddleware(keys)(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestBearerAuth(t *testing.T) {
	const apiPath = "/api/v1/documents"

	cases := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys disables auth", nil, apiPath, "", http.StatusOK},
		{"blank keys disable auth", []string{"", ""}, apiPath, "", http.StatusOK},
		{"missing header", []string{"secret"}, apiPath, "", http.StatusUnauthorized},
		{"basic scheme rejected", []string{"secret"}, apiPath, "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong token", []string{"secret"}, apiPath, "Bearer wrong-key", http.StatusUnauthorized},
		{"valid token", []string{"secret"}, apiPath, "Bearer secret", http.StatusOK},
		{"second configured key", []string{"key1", "key2"}, apiPath, "Bearer key2", http.StatusOK},
		{"health exempt", []string{"secret"}, "/health", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, "/metrics", "", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := authRequest(t, tc.keys, tc.path, tc.header)
			if rr.Code != tc.want {
				t.Errorf("got status %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestBearerAuth_ErrorBody(t *testing.T) {
	rr := authRequest(t, []string{"secret"}, "/api/v1/documents", "")

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeUnauthorized {
		t.Errorf("got error code %q, want %q", resp.Code, codeUnauthorized)
	}
}
