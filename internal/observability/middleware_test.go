package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/authctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Fatalf("log missing request id: %s", buf.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("request id not minted")
	}
}

func TestRequestMetricsUnmatchedRoute(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	RegisterMetrics()
	r := gin.New()
	r.Use(RequestMetricsMiddleware("metrics-test"))

	counter := httpRequests.WithLabelValues("metrics-test", "GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/2", nil))
	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, before+2)
	}
}
