package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/authctl/internal/protocol"
)

func TestRoundTripAllTypes(t *testing.T) {
	c := Default()
	payloads := []string{"", "deadbeef", "secret session text", "quote \" and newline \n and <html>&", "ünïcødé"}
	senders := []string{"", "dkanda", "user with spaces"}
	for _, typ := range Types {
		for _, p := range payloads {
			for _, s := range senders {
				in := Message{Type: typ, Payload: p, Sender: s}
				wire, err := c.Encode(in)
				if err != nil {
					t.Fatalf("encode %+v: %v", in, err)
				}
				out, err := c.Decode(wire)
				if err != nil {
					t.Fatalf("decode %q: %v", wire, err)
				}
				if out != in {
					t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
				}
			}
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	c := Default()
	msg := Message{Type: TypeResponse, Payload: "abcd", Sender: "dkanda"}
	a, _ := c.Encode(msg)
	b, _ := c.Encode(msg)
	if string(a) != string(b) {
		t.Fatalf("encoding differs: %q vs %q", a, b)
	}
	want := `{"type":"RESPONSE","message":"abcd","suid":"dkanda"}` + "\n"
	if string(a) != want {
		t.Fatalf("unexpected wire form: %q", a)
	}
}

func TestEncodeUnknownType(t *testing.T) {
	if _, err := Default().Encode(Message{Type: TypeUnknown}); !errors.Is(err, ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	c := Default()
	for _, in := range []Message{
		{Type: TypeSessionMessage, Payload: "ab\xffcd", Sender: "s"},
		{Type: TypeResponse, Payload: "abcd", Sender: "s\xfe"},
	} {
		wire, err := c.Encode(in)
		if !errors.Is(err, ErrInvalidUTF8) || !errors.Is(err, ErrUnencodable) {
			t.Fatalf("Encode(%q, %q) expected ErrInvalidUTF8, got wire=%q err=%v", in.Payload, in.Sender, wire, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := Default()
	inputs := []string{
		"",
		"not json",
		`{"type":"CHALLENGE","message":"ab"`,
		`["CHALLENGE"]`,
		`null`,
		`{"type":7,"message":"ab"}`,
		`{"type":"CHALLENGE","message":{"nested":true}}`,
		`{"type":"CHALLENGE"} {"type":"END"}`,
	}
	for _, in := range inputs {
		_, err := c.Decode([]byte(in))
		var de *DecodeError
		if !errors.As(err, &de) || !errors.Is(err, protocol.ErrDecode) {
			t.Fatalf("Decode(%q) expected DecodeError, got %v", in, err)
		}
	}
}

func TestDecodeUnknownTypeIsNotDecodeError(t *testing.T) {
	msg, err := Default().Decode([]byte(`{"type":"HELLO","message":"x","suid":"s"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != TypeUnknown || msg.Unrecognized != "HELLO" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	msg, err = Default().Decode([]byte(`{"message":"x"}`))
	if err != nil || msg.Type != TypeUnknown {
		t.Fatalf("expected unknown type for missing field, got %+v %v", msg, err)
	}
	for _, in := range []string{
		`{"TYPE":"CHALLENGE","MESSAGE":"abcd","SUID":"x"}`,
		`{"Type":"CHALLENGE","message":"abcd"}`,
	} {
		msg, err = Default().Decode([]byte(in))
		if err != nil {
			t.Fatalf("decode %s: %v", in, err)
		}
		if msg.Type != TypeUnknown {
			t.Fatalf("field names must match exactly, %s decoded as %s", in, msg.Type)
		}
	}
	msg, err = Default().Decode([]byte(`{"type":"END","MESSAGE":"ignored"}`))
	if err != nil || msg.Type != TypeEnd || msg.Payload != "" {
		t.Fatalf("unexpected decode of mixed-case extra field: %+v %v", msg, err)
	}
}

func TestDecodeNonStringFields(t *testing.T) {
	for _, in := range []string{
		`{"type":null,"message":"x"}`,
		`{"type":"CHALLENGE","message":12}`,
		`{"type":"CHALLENGE","message":"ab","suid":["s"]}`,
	} {
		_, err := Default().Decode([]byte(in))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("Decode(%s) expected DecodeError, got %v", in, err)
		}
	}
}

func TestNewRejectsBadVocabulary(t *testing.T) {
	names := DefaultTypeNames()
	delete(names, TypeEnd)
	if _, err := New(names); !errors.Is(err, ErrInvalidTypeName) {
		t.Fatalf("expected ErrInvalidTypeName for missing name, got %v", err)
	}
	names = DefaultTypeNames()
	names[TypeEnd] = names[TypeSuccess]
	if _, err := New(names); !errors.Is(err, ErrInvalidTypeName) {
		t.Fatalf("expected ErrInvalidTypeName for duplicate name, got %v", err)
	}
}

func TestCustomVocabulary(t *testing.T) {
	names := DefaultTypeNames()
	names[TypeChallenge] = "0"
	c, err := New(names)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	msg, err := c.Decode([]byte(`{"type":"0","message":"ab"}`))
	if err != nil || msg.Type != TypeChallenge {
		t.Fatalf("unexpected decode: %+v %v", msg, err)
	}
	msg, _ = c.Decode([]byte(`{"type":"CHALLENGE","message":"ab"}`))
	if msg.Type != TypeUnknown {
		t.Fatalf("default name should be unknown under custom vocabulary: %+v", msg)
	}
}

func TestDecoderSplitAndCoalescedChunks(t *testing.T) {
	c := Default()
	a, _ := c.Encode(Message{Type: TypeChallenge, Payload: "00ff"})
	b, _ := c.Encode(Message{Type: TypeSuccess, Payload: "secret"})
	stream := string(a) + string(b)

	d := c.NewDecoder()
	var got []Message
	for i := 0; i < len(stream); i += 7 {
		end := min(i+7, len(stream))
		msgs, err := d.Feed([]byte(stream[i:end]))
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		got = append(got, msgs...)
	}
	if len(got) != 2 || got[0].Type != TypeChallenge || got[1].Payload != "secret" {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if d.Buffered() != 0 || d.Close() != nil {
		t.Fatalf("expected empty decoder, buffered=%d", d.Buffered())
	}

	d = c.NewDecoder()
	msgs, err := d.Feed([]byte(strings.TrimSpace(string(a)) + strings.TrimSpace(string(b))))
	if err != nil || len(msgs) != 2 {
		t.Fatalf("expected two coalesced records without separator, got %d %v", len(msgs), err)
	}
}

func TestDecoderErrorIsSticky(t *testing.T) {
	c := Default()
	good, _ := c.Encode(Message{Type: TypeChallenge, Payload: "00"})
	d := c.NewDecoder()
	msgs, err := d.Feed(append(good, []byte("garbage")...))
	if len(msgs) != 1 || !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expected one message then decode error, got %d %v", len(msgs), err)
	}
	if _, err := d.Feed(good); !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expected sticky error, got %v", err)
	}
}

func TestDecoderLimitsAndClose(t *testing.T) {
	c := Default()
	d := c.NewDecoder()
	d.SetMaxBuffered(16)
	if _, err := d.Feed([]byte(`{"type":"CHALLENGE","message":"`)); !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expected limit error, got %v", err)
	}

	d = c.NewDecoder()
	if _, err := d.Feed([]byte(`{"type":"END"`)); err != nil {
		t.Fatalf("partial record should wait: %v", err)
	}
	if err := d.Close(); !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expected unterminated error on close, got %v", err)
	}
}
