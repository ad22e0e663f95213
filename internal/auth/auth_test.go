package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/authctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func TestBearerTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  BearerToken
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.stored.Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	testlog.Start(t)
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := FromRequest(r); got != want {
			t.Fatalf("header %q: got %q want %q", header, got, want)
		}
	}
}

func TestRequire(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", Require(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/closed", Require(BearerToken("s3cret")), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct {
		path   string
		header string
		want   int
	}{
		{"/open", "", http.StatusOK},
		{"/closed", "", http.StatusUnauthorized},
		{"/closed", "Bearer wrong", http.StatusUnauthorized},
		{"/closed", "Bearer s3cret", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s %q: got %d want %d", tc.path, tc.header, rr.Code, tc.want)
		}
	}
}
