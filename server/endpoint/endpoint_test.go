package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribe/observability"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	return rr.Code, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		components []observability.Health
		wantStatus string
	}{
		{"no dependencies", nil, "up"},
		{"all up", []observability.Health{{Name: "heavy_server", Status: observability.HealthStatusUp}}, "up"},
		{"backend down degrades", []observability.Health{
			{Name: "heavy_server", Status: observability.HealthStatusUp},
			{Name: "aligned_diarization", Status: observability.HealthStatusDown},
		}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, Health("scribe", func(context.Context) []observability.Health { return tt.components }))
			if code != http.StatusOK {
				t.Errorf("code = %d", code)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}

func TestInfo_MergesExtra(t *testing.T) {
	code, body := serve(t, Info("scribe", func() gin.H { return gin.H{"tier": "mid"} }))
	if code != http.StatusOK || body["service"] != "scribe" || body["tier"] != "mid" {
		t.Errorf("code=%d body=%v", code, body)
	}
}

func TestMetrics(t *testing.T) {
	_, body := serve(t, Metrics())
	if _, ok := body["goroutines"]; !ok {
		t.Errorf("body = %v", body)
	}
}
