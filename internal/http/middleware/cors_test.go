package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name      string
		allowed   []string
		method    string
		origin    string
		preflight bool

		wantStatus  int
		wantOrigin  string
		wantHandler bool
		wantExpose  bool
		wantMethods bool
	}{
		{
			name:        "listed origin on a simple request",
			allowed:     []string{"https://book.example.com/"},
			method:      http.MethodPost,
			origin:      "https://book.example.com",
			wantStatus:  http.StatusCreated,
			wantOrigin:  "https://book.example.com",
			wantHandler: true,
			wantExpose:  true,
		},
		{
			name:        "origin compare ignores case",
			allowed:     []string{"https://Book.Example.com"},
			method:      http.MethodGet,
			origin:      "https://book.example.com",
			wantStatus:  http.StatusCreated,
			wantOrigin:  "https://book.example.com",
			wantHandler: true,
			wantExpose:  true,
		},
		{
			name:        "unknown origin is served without CORS headers",
			allowed:     []string{"https://book.example.com"},
			method:      http.MethodGet,
			origin:      "https://unknown.example",
			wantStatus:  http.StatusCreated,
			wantHandler: true,
		},
		{
			name:        "wildcard echoes origin",
			allowed:     []string{" * "},
			method:      http.MethodGet,
			origin:      "https://random.example",
			wantStatus:  http.StatusCreated,
			wantOrigin:  "https://random.example",
			wantHandler: true,
			wantExpose:  true,
		},
		{
			name:        "no origin header",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			wantStatus:  http.StatusCreated,
			wantHandler: true,
		},
		{
			name:        "preflight from listed origin",
			allowed:     []string{"https://book.example.com"},
			method:      http.MethodOptions,
			origin:      "https://book.example.com",
			preflight:   true,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://book.example.com",
			wantMethods: true,
		},
		{
			name:       "preflight from unknown origin",
			allowed:    []string{"https://book.example.com/"},
			method:     http.MethodOptions,
			origin:     "https://evil.example",
			preflight:  true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:        "options without request method is passed through",
			allowed:     []string{"https://book.example.com"},
			method:      http.MethodOptions,
			origin:      "https://book.example.com",
			wantStatus:  http.StatusCreated,
			wantOrigin:  "https://book.example.com",
			wantHandler: true,
			wantExpose:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusCreated)
			})
			req := httptest.NewRequest(tc.method, "/api/grooming/bookings", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			h := rec.Header()
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if called != tc.wantHandler {
				t.Errorf("handler called = %v, want %v", called, tc.wantHandler)
			}
			if got := h.Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tc.wantOrigin)
			}
			if got := h.Get("Access-Control-Expose-Headers"); (got == corsExposedHeaders) != tc.wantExpose {
				t.Errorf("expose headers = %q", got)
			}
			if got := h.Get("Access-Control-Allow-Headers"); (got == corsAllowedHeaders) != tc.wantMethods {
				t.Errorf("allow headers = %q", got)
			}
			if got := h.Get("Access-Control-Allow-Methods"); (got == corsAllowedMethods) != tc.wantMethods {
				t.Errorf("allow methods = %q", got)
			}
			if h.Get("Vary") != "Origin" {
				t.Errorf("expected Vary: Origin, got %q", h.Get("Vary"))
			}
		})
	}
}
