// Package auth guards the local admin surface with a bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator checks a presented credential.
type Validator interface {
	Validate(token string) error
}

// BearerToken accepts exactly one configured token. An empty token rejects
// everything.
type BearerToken string

func (b BearerToken) Validate(token string) error {
	if b == "" || subtle.ConstantTimeCompare([]byte(b), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FromRequest extracts the token from an "Authorization: Bearer" header.
func FromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Require aborts requests whose bearer token v rejects. A nil v allows all.
func Require(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		if err := v.Validate(FromRequest(c.Request)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
