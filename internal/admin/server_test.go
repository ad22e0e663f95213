package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/authctl/internal/client"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/driver"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/danmuck/authctl/internal/testutil/testlog"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	testlog.Start(t)
	r := NewRouter("authctl", NewStatus(), Options{})
	rr := get(t, r, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["app"] != "authctl" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	testlog.Start(t)
	status := NewStatus()
	r := NewRouter("authctl", status, Options{})

	rr := get(t, r, "/status")
	if strings.Contains(rr.Body.String(), `"last"`) {
		t.Fatalf("unexpected last run before any run: %s", rr.Body.String())
	}

	status.Record(client.Run{
		ID:       "run-1",
		Addr:     "localhost:8999",
		Duration: 20 * time.Millisecond,
		Result: driver.Result{
			State:    machine.StateEnd,
			Payloads: []driver.Payload{{Kind: machine.DeliverEstablished, Content: "hi"}},
		},
	})
	status.Record(client.Run{
		ID: "run-2",
		Result: driver.Result{
			State: machine.StateAbort,
			Err:   fmt.Errorf("%w: dial", protocol.ErrTransport),
		},
	})

	rr = get(t, r, "/status")
	var body struct {
		Runs map[string]int `json:"runs"`
		Last RunSnapshot    `json:"last"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Runs["END"] != 1 || body.Runs["ABORT"] != 1 {
		t.Fatalf("unexpected counts %v", body.Runs)
	}
	if body.Last.ID != "run-2" || body.Last.Kind != "transport" || body.Last.Error == "" {
		t.Fatalf("unexpected last %+v", body.Last)
	}
}

func TestMetricsExposesProtocolCounters(t *testing.T) {
	testlog.Start(t)
	r := NewRouter("authctl", NewStatus(), Options{})
	get(t, r, "/health")
	rr := get(t, r, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "authctl_http_requests_total") {
		t.Fatalf("metrics missing http counter")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, NewRouter("authctl", NewStatus(), Options{})) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}
}

func TestTokenGuardsStatusAndMetrics(t *testing.T) {
	testlog.Start(t)
	r := NewRouter("authctl", NewStatus(), Options{Token: "s3cret"})

	if rr := get(t, r, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rr.Code)
	}
	for _, path := range []string{"/status", "/metrics"} {
		if rr := get(t, r, path); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: got %d", path, rr.Code)
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s with token: got %d", path, rr.Code)
		}
	}
}
