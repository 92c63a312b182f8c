package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/server/middleware"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestRecovery(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("decoder exploded")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/transcriptions", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", code)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	return body.Error.Code
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"preserved", "req-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get(middleware.RequestIDHeader)
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.incoming != "" {
				req.Header.Set(middleware.RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(middleware.RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("response id %q, handler saw %q", got, seen)
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("id = %q, want %q", got, tt.incoming)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         middleware.CORSConfig
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantCreds   bool
		wantMethods string
		wantExposed string
	}{
		{
			name:        "allowed origin",
			cfg:         middleware.CORSConfig{AllowedOrigins: []string{"https://app.local"}, ExposedHeaders: []string{middleware.RequestIDHeader}},
			method:      http.MethodGet,
			origin:      "https://app.local",
			wantOrigin:  "https://app.local",
			wantStatus:  http.StatusOK,
			wantExposed: middleware.RequestIDHeader,
		},
		{
			name:       "disallowed origin",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"https://app.local"}},
			method:     http.MethodGet,
			origin:     "https://other.local",
			wantStatus: http.StatusOK,
		},
		{
			name:        "preflight short-circuits",
			cfg:         middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
			method:      http.MethodOptions,
			origin:      "https://app.local",
			preflight:   true,
			wantOrigin:  "https://app.local",
			wantStatus:  http.StatusNoContent,
			wantMethods: "GET, POST",
		},
		{
			name:       "plain options reaches handler",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"*"}},
			method:     http.MethodOptions,
			origin:     "https://app.local",
			wantOrigin: "https://app.local",
			wantStatus: http.StatusOK,
		},
		{
			name:       "credentials",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodGet,
			origin:     "https://app.local",
			wantOrigin: "https://app.local",
			wantStatus: http.StatusOK,
			wantCreds:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/v1/device", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			middleware.CORS(&cfg)(ok).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("credentials = %v", got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("methods = %q, want %q", got, tt.wantMethods)
			}
			if got := rr.Header().Get("Access-Control-Expose-Headers"); got != tt.wantExposed {
				t.Errorf("exposed = %q, want %q", got, tt.wantExposed)
			}
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	handler := middleware.BodySizeLimit("1KB")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	small := httptest.NewRecorder()
	handler.ServeHTTP(small, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	if small.Code != http.StatusOK {
		t.Errorf("small body status = %d", small.Code)
	}

	large := httptest.NewRecorder()
	handler.ServeHTTP(large, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 2048))))
	if large.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body status = %d", large.Code)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512KB", 512 * 1024},
		{"10mb", 10 * 1024 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"100", 100},
		{"", 7},
		{"lots", 7},
		{"-5MB", 7},
	}
	for _, tt := range tests {
		if got := middleware.ParseSize(tt.in, 7); got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	handler := middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: 2, PathPrefix: "/v1/"})(ok)
	send := func(path, addr string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
		req.RemoteAddr = addr
		handler.ServeHTTP(rr, req)
		return rr
	}

	var last *httptest.ResponseRecorder
	codes := make([]int, 0, 3)
	for range 3 {
		last = send("/v1/transcriptions", "10.0.0.7:5000")
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if code := errorCode(t, last); code != "RATE_LIMITED" {
		t.Errorf("code = %q", code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rr := send("/v1/transcriptions", "10.0.0.8:5000"); rr.Code != http.StatusOK {
		t.Errorf("other client limited: %d", rr.Code)
	}
	if rr := send("/health", "10.0.0.7:5000"); rr.Code != http.StatusOK {
		t.Errorf("unprefixed path limited: %d", rr.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+">")
				next.ServeHTTP(w, r)
				order = append(order, "<"+name)
			})
		}
	}
	middleware.Chain(mark("outer"), mark("inner"))(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	want := "outer> inner> <inner <outer"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

type flushRecorder struct {
	http.ResponseWriter
	flushed bool
}

func (f *flushRecorder) Flush() { f.flushed = true }

// Server-sent event relays depend on Flush reaching the connection through
// the logging wrapper.
func TestRequestLogger_PropagatesFlush(t *testing.T) {
	fr := &flushRecorder{ResponseWriter: httptest.NewRecorder()}
	handler := middleware.RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
	}))
	handler.ServeHTTP(fr, httptest.NewRequest(http.MethodPost, "/v1/transcriptions/stream", http.NoBody))

	if !fr.flushed {
		t.Error("Flush was not delegated")
	}
}
