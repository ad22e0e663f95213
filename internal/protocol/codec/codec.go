// Package codec frames protocol messages as newline-terminated JSON objects
// carrying type, message, and suid.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBuffered bounds the bytes a Decoder holds while waiting for a record to finish.
const DefaultMaxBuffered = 64 * 1024

const (
	fieldType    = "type"
	fieldMessage = "message"
	fieldSUID    = "suid"
)

type wireRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Suid    string `json:"suid"`
}

// Codec encodes and decodes messages with a fixed type vocabulary.
type Codec struct {
	names  TypeNames
	byName map[string]MessageType
}

// New builds a Codec from names. Every known type needs a distinct, non-empty name.
func New(names TypeNames) (*Codec, error) {
	c := &Codec{names: TypeNames{}, byName: map[string]MessageType{}}
	for _, t := range Types {
		name := strings.TrimSpace(names[t])
		if name == "" {
			return nil, fmt.Errorf("%w: missing name for type %d", ErrInvalidTypeName, t)
		}
		if prev, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q used by types %d and %d", ErrInvalidTypeName, name, prev, t)
		}
		c.names[t] = name
		c.byName[name] = t
	}
	return c, nil
}

// Default returns a Codec over DefaultTypeNames.
func Default() *Codec {
	c, err := New(DefaultTypeNames())
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the wire name for t.
func (c *Codec) Name(t MessageType) (string, bool) {
	name, ok := c.names[t]
	return name, ok
}

// Encode returns the deterministic wire form of msg, newline terminated.
// Payload and Sender must be valid UTF-8; anything else is rejected with
// ErrInvalidUTF8 rather than rewritten.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	name, ok := c.names[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: type %d has no wire name", ErrUnencodable, msg.Type)
	}
	if !utf8.ValidString(msg.Payload) {
		return nil, fmt.Errorf("%w: %w: message", ErrUnencodable, ErrInvalidUTF8)
	}
	if !utf8.ValidString(msg.Sender) {
		return nil, fmt.Errorf("%w: %w: suid", ErrUnencodable, ErrInvalidUTF8)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireRecord{Type: name, Message: msg.Payload, Suid: msg.Sender}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses exactly one record. Trailing whitespace is allowed; anything
// else after the record is a DecodeError.
func (c *Codec) Decode(b []byte) (Message, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Message{}, decodeErr("empty record", nil)
	}
	if b[0] != '{' {
		return Message{}, decodeErr("record is not an object", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, decodeErr("unterminated record", err)
		}
		return Message{}, decodeErr("malformed record", err)
	}
	if dec.InputOffset() != int64(len(b)) {
		return Message{}, decodeErr("trailing data after record", nil)
	}
	return c.fromRaw(raw)
}

// fromRaw maps one JSON object onto a Message. Field names match exactly;
// a missing or differently cased "type" key yields TypeUnknown.
func (c *Codec) fromRaw(raw json.RawMessage) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{}, decodeErr("record is not an object", err)
	}
	typ, _, err := stringField(fields, fieldType)
	if err != nil {
		return Message{}, err
	}
	payload, _, err := stringField(fields, fieldMessage)
	if err != nil {
		return Message{}, err
	}
	sender, _, err := stringField(fields, fieldSUID)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Payload: payload, Sender: sender}
	if t, ok := c.byName[typ]; ok {
		msg.Type = t
	} else {
		msg.Type = TypeUnknown
		msg.Unrecognized = typ
	}
	return msg, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	v, ok := fields[key]
	if !ok {
		return "", false, nil
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '"' {
		return "", true, decodeErr(fmt.Sprintf("field %q is not a string", key), nil)
	}
	var out string
	if err := json.Unmarshal(v, &out); err != nil {
		return "", true, decodeErr(fmt.Sprintf("field %q is not a string", key), err)
	}
	return out, true, nil
}

// NewDecoder returns a stream decoder for one connection.
func (c *Codec) NewDecoder() *Decoder {
	return &Decoder{codec: c, max: DefaultMaxBuffered}
}

// Decoder reassembles records from arbitrarily split transport chunks.
// It is not safe for concurrent use; each connection owns one.
type Decoder struct {
	codec *Codec
	buf   []byte
	max   int
	err   error
}

// SetMaxBuffered changes the pending-bytes limit.
func (d *Decoder) SetMaxBuffered(n int) {
	d.max = n
}

// Buffered reports bytes held for an incomplete record.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends chunk and returns every record it completes. When a record is
// malformed, messages decoded before it are returned together with the
// DecodeError, and the Decoder rejects all further input.
func (d *Decoder) Feed(chunk []byte) ([]Message, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, chunk...)

	var out []Message
	for {
		d.buf = bytes.TrimLeft(d.buf, " \t\r\n")
		if len(d.buf) == 0 {
			d.buf = nil
			return out, nil
		}
		if d.buf[0] != '{' {
			return out, d.fail(decodeErr("record is not an object", nil))
		}
		dec := json.NewDecoder(bytes.NewReader(d.buf))
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if d.max > 0 && len(d.buf) > d.max {
				return out, d.fail(decodeErr(fmt.Sprintf("record exceeds %d bytes", d.max), nil))
			}
			return out, nil
		}
		if err != nil {
			return out, d.fail(decodeErr("malformed record", err))
		}
		msg, err := d.codec.fromRaw(raw)
		if err != nil {
			return out, d.fail(err)
		}
		out = append(out, msg)
		d.buf = d.buf[dec.InputOffset():]
	}
}

// Close reports an unterminated record left in the buffer when the stream ends.
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if len(bytes.TrimSpace(d.buf)) > 0 {
		return d.fail(decodeErr("unterminated record at end of stream", nil))
	}
	return nil
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.buf = nil
	return err
}
