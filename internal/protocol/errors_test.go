package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{fmt.Errorf("%w: missing host", ErrConfiguration), "configuration"},
		{fmt.Errorf("%w: expired", ErrCertificate), "certificate"},
		{fmt.Errorf("%w: SUCCESS in START", ErrProtocolViolation), "protocol_violation"},
		{fmt.Errorf("%w: bad json", ErrDecode), "decode"},
		{fmt.Errorf("%w: reset", ErrTransport), "transport"},
		{ErrSessionClosed, "session_closed"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q want %q", tc.err, got, tc.want)
		}
	}
}
