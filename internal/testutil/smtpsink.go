package testutil

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
)

// Envelope is one message accepted by the sink.
type Envelope struct {
	From string
	To   []string
	Data []byte
}

// SMTPSink is an in-process SMTP server that records every message it
// accepts. It speaks plaintext only and accepts any sender.
type SMTPSink struct {
	server *smtp.Server
	ln     net.Listener

	mu       sync.Mutex
	received []Envelope
	sessions int
	dataErr  error
}

// NewSMTPSink starts a sink on a random loopback port. It is shut down
// when the test ends.
func NewSMTPSink(t *testing.T) *SMTPSink {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("smtp sink listen: %v", err)
	}

	sink := &SMTPSink{ln: ln}
	s := smtp.NewServer(sink)
	s.Domain = "localhost"
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxMessageBytes = 1 << 20
	s.MaxRecipients = 10
	s.AllowInsecureAuth = true
	sink.server = s

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			t.Logf("smtp sink: %v", err)
		}
	}()
	t.Cleanup(func() { s.Close() })

	return sink
}

// Host returns the listening host.
func (s *SMTPSink) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listening port.
func (s *SMTPSink) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Messages returns a copy of everything accepted so far.
func (s *SMTPSink) Messages() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.received))
	copy(out, s.received)
	return out
}

// Sessions returns how many SMTP connections have been opened.
func (s *SMTPSink) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// RejectData makes every following DATA command fail with a permanent error.
func (s *SMTPSink) RejectData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataErr = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 0, 0},
		Message:      "Transaction failed",
	}
}

// NewSession implements smtp.Backend.
func (s *SMTPSink) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return &sinkSession{sink: s}, nil
}

type sinkSession struct {
	sink *SMTPSink
	env  Envelope
}

func (ss *sinkSession) Mail(from string, _ *smtp.MailOptions) error {
	ss.env = Envelope{From: from}
	return nil
}

func (ss *sinkSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	ss.env.To = append(ss.env.To, to)
	return nil
}

func (ss *sinkSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ss.sink.mu.Lock()
	defer ss.sink.mu.Unlock()
	if ss.sink.dataErr != nil {
		return ss.sink.dataErr
	}
	ss.env.Data = data
	ss.sink.received = append(ss.sink.received, ss.env)
	return nil
}

func (ss *sinkSession) Reset() {
	ss.env = Envelope{}
}

func (ss *sinkSession) Logout() error {
	return nil
}
