package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("mailer: sender is closed")

// SMTP sends through a single relay server, reusing connections across
// sends. Each pooled slot holds at most one client and is checked out by
// one send at a time.
type SMTP struct {
	cfg    config.ServerSettings
	opts   []mail.Option
	slots  chan *slot
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

type slot struct {
	client   *mail.Client
	lastUsed time.Time
}

// NewSMTP returns a sender for the server described by cfg. No connection
// is opened until the first Send.
func NewSMTP(cfg config.ServerSettings, logger *zap.Logger) *SMTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.SMTPPoolSize
	if size <= 0 {
		size = 1
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.NoTLS),
		mail.WithPort(cfg.SMTPPort),
	}
	if cfg.SMTPHello != "" {
		opts = append(opts, mail.WithHELO(cfg.SMTPHello))
	}
	if cfg.SMTPTimeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.SMTPTimeout))
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlainNoEnc),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	s := &SMTP{
		cfg:    cfg,
		opts:   opts,
		slots:  make(chan *slot, size),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		s.slots <- &slot{}
	}
	return s
}

// Send delivers msg, waiting for a free connection slot if all are busy.
func (s *SMTP) Send(ctx context.Context, msg Message) (Receipt, error) {
	start := time.Now()
	r, err := s.send(ctx, msg)
	metrics.ObserveMailSend(err == nil, time.Since(start))
	return r, err
}

func (s *SMTP) send(ctx context.Context, msg Message) (Receipt, error) {
	m, id, err := s.build(msg)
	if err != nil {
		return Receipt{}, &TransportError{Op: "compose", Err: err}
	}

	var sl *slot
	select {
	case sl = <-s.slots:
	case <-ctx.Done():
		return Receipt{}, &TransportError{Op: "dial", Err: ctx.Err()}
	}
	defer s.release(sl)

	if s.isClosed() {
		return Receipt{}, &TransportError{Op: "dial", Err: ErrClosed}
	}

	if err := s.ready(ctx, sl); err != nil {
		return Receipt{}, &TransportError{Op: "dial", Err: err}
	}

	if err := sl.client.Send(m); err != nil {
		s.drop(sl)
		return Receipt{}, &TransportError{Op: "send", Err: err}
	}
	sl.lastUsed = time.Now()

	s.logger.Debug("mail accepted",
		zap.String("message_id", id),
		zap.String("to", msg.ToAddress))
	return Receipt{MessageID: id, Accepted: sl.lastUsed}, nil
}

// ready makes sure sl holds a usable connection, redialling one that has
// sat idle too long or no longer answers RSET.
func (s *SMTP) ready(ctx context.Context, sl *slot) error {
	if sl.client != nil {
		idle := s.cfg.SMTPIdleTimeout
		switch {
		case idle > 0 && time.Since(sl.lastUsed) > idle:
			s.drop(sl)
		case sl.client.Reset() != nil:
			s.drop(sl)
		default:
			return nil
		}
	}

	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	sl.client = c
	sl.lastUsed = time.Now()
	return nil
}

func (s *SMTP) dial(ctx context.Context) (*mail.Client, error) {
	c, err := mail.NewClient(s.cfg.SMTPServer, s.opts...)
	if err != nil {
		return nil, err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SMTP) release(sl *slot) {
	if s.isClosed() {
		s.drop(sl)
	}
	s.slots <- sl
}

func (s *SMTP) drop(sl *slot) {
	if sl.client == nil {
		return
	}
	if err := sl.client.Close(); err != nil {
		s.logger.Debug("closing smtp connection", zap.Error(err))
	}
	sl.client = nil
}

func (s *SMTP) build(msg Message) (*mail.Msg, string, error) {
	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))

	if err := m.From(msg.From); err != nil {
		return nil, "", err
	}
	if err := m.AddToFormat(msg.ToName, msg.ToAddress); err != nil {
		return nil, "", err
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, "", err
		}
	}
	m.Subject(msg.Subject)
	m.SetDate()

	id := uuid.NewString() + "@" + domainOf(msg.From)
	m.SetMessageIDWithValue(id)

	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)

	return m, id, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return strings.TrimSuffix(addr[i+1:], ">")
	}
	return "localhost"
}

// Ping opens and closes a connection to the relay server.
func (s *SMTP) Ping(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	return c.Close()
}

// Close closes idle pooled connections and makes later sends fail.
// Connections held by in-flight sends are closed when they are released.
func (s *SMTP) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for {
		select {
		case sl := <-s.slots:
			s.drop(sl)
			defer func(sl *slot) { s.slots <- sl }(sl)
		default:
			return nil
		}
	}
}

func (s *SMTP) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
