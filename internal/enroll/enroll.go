// Package enroll registers a public key with the server's enrollment
// endpoint before any protocol run.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/authctl/internal/crypto"
	"github.com/danmuck/authctl/internal/observability"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the only response body that signals a completed enrollment.
const SuccessBody = "SUCCESS"

const maxResponseBody = 4 << 10

var (
	ErrRejected     = errors.New("enroll: rejected by server")
	ErrURLRequired  = errors.New("enroll: url required")
	ErrSUIDRequired = errors.New("enroll: suid required")
)

// Request is the form posted to the enrollment endpoint.
type Request struct {
	SUID      string
	PubKey    string
	Signature string
}

// Sign builds a Request for suid by signing the hex enrollment token with signer.
func Sign(signer *crypto.Signer, suid, tokenHex string) (Request, error) {
	suid = strings.TrimSpace(suid)
	if suid == "" {
		return Request{}, ErrSUIDRequired
	}
	sig, err := signer.SignHex(strings.TrimSpace(tokenHex))
	if err != nil {
		return Request{}, fmt.Errorf("enroll: sign token: %w", err)
	}
	pub, err := crypto.MarshalPublicKey(signer.Public())
	if err != nil {
		return Request{}, err
	}
	return Request{SUID: suid, PubKey: pub, Signature: sig}, nil
}

// Form returns the url-encoded body fields.
func (r Request) Form() url.Values {
	return url.Values{
		"suid":      {r.SUID},
		"pub_key":   {r.PubKey},
		"signature": {r.Signature},
	}
}

type Client struct {
	URL  string
	HTTP *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		URL:  endpoint,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enroll posts req and returns nil only when the body is exactly SuccessBody.
// Network failures wrap protocol.ErrTransport.
func (c *Client) Enroll(ctx context.Context, req Request) error {
	start := time.Now()
	err := c.enroll(ctx, req)
	result := "success"
	switch {
	case errors.Is(err, ErrRejected):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	observability.RecordEnroll(result, time.Since(start))
	log.Info().Str("suid", req.SUID).Str("result", result).Dur("duration", time.Since(start)).Msg("enrollment")
	return err
}

func (c *Client) enroll(ctx context.Context, req Request) error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: %w", protocol.ErrConfiguration, ErrURLRequired)
	}
	if req.SUID == "" {
		return fmt.Errorf("%w: %w", protocol.ErrConfiguration, ErrSUIDRequired)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(req.Form().Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrConfiguration, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", protocol.ErrTransport, err)
	}
	if string(body) != SuccessBody {
		return fmt.Errorf("%w: status %s", ErrRejected, resp.Status)
	}
	return nil
}
