// Package fakeserver runs a scripted TLS peer for client protocol tests.
package fakeserver

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/authctl/internal/protocol/codec"
)

// Peer is the server side of one accepted connection.
type Peer struct {
	Conn   *tls.Conn
	codec  *codec.Codec
	reader *bufio.Reader
}

// Send writes one encoded message.
func (p *Peer) Send(typ codec.MessageType, payload string) error {
	wire, err := p.codec.Encode(codec.Message{Type: typ, Payload: payload, Sender: "server"})
	if err != nil {
		return err
	}
	_, err = p.Conn.Write(wire)
	return err
}

// SendRaw writes bytes as-is.
func (p *Peer) SendRaw(b []byte) error {
	_, err := p.Conn.Write(b)
	return err
}

// Recv reads one newline-terminated record.
func (p *Peer) Recv() (codec.Message, error) {
	_ = p.Conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return codec.Message{}, err
	}
	return p.codec.Decode(line)
}

// Drain reads until the client closes, returning any error other than EOF.
func (p *Peer) Drain() error {
	_ = p.Conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 512)
	for {
		if _, err := p.reader.Read(buf); err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
	}
}

func isClosed(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, net.ErrClosed) || errors.As(err, &opErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Server accepts connections and runs Script on each.
type Server struct {
	ln     net.Listener
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	script func(*Peer) error
}

// Start listens on loopback with cert and serves until the test ends.
func Start(t testing.TB, cert tls.Certificate, script func(*Peer) error) *Server {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{ln: ln, script: script}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Errors returns script failures observed so far.
func (s *Server) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			tc := conn.(*tls.Conn)
			peer := &Peer{Conn: tc, codec: codec.Default(), reader: bufio.NewReader(tc)}
			if err := s.script(peer); err != nil {
				s.mu.Lock()
				s.errs = append(s.errs, err)
				s.mu.Unlock()
			}
		}()
	}
}
