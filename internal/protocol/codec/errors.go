package codec

import (
	"errors"
	"fmt"

	"github.com/danmuck/authctl/internal/protocol"
)

var (
	ErrUnencodable     = errors.New("codec: message cannot be encoded")
	ErrInvalidUTF8     = errors.New("codec: field is not valid UTF-8")
	ErrInvalidTypeName = errors.New("codec: invalid type vocabulary")
)

// DecodeError reports a wire record that could not be turned into a Message.
// It matches protocol.ErrDecode under errors.Is.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("codec: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{protocol.ErrDecode, e.Err}
	}
	return []error{protocol.ErrDecode}
}

func decodeErr(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}
