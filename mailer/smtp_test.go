package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/internal/testutil"
	"github.com/stretchr/testify/require"
)

func sinkSettings(sink *testutil.SMTPSink) config.ServerSettings {
	return config.ServerSettings{
		SMTPServer:      sink.Host(),
		SMTPPort:        sink.Port(),
		SMTPHello:       "localhost",
		SMTPTimeout:     5 * time.Second,
		SMTPPoolSize:    1,
		SMTPIdleTimeout: time.Minute,
	}
}

func TestSMTP_RoundTrip(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	s := NewSMTP(sinkSettings(sink), nil)
	defer s.Close()

	receipt, err := s.Send(testutil.Context(t), Compose(submission(), endpoint()))
	require.NoError(t, err)
	require.NotEmpty(t, receipt.MessageID)
	require.True(t, strings.HasSuffix(receipt.MessageID, "@mysite.example"), receipt.MessageID)
	require.False(t, receipt.Accepted.IsZero())

	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "noreply@mysite.example", msgs[0].From)
	require.Equal(t, []string{"owner@mysite.example"}, msgs[0].To)

	data := string(msgs[0].Data)
	require.Contains(t, data, "Subject: [My Site] Contact from Mr. Foo Bar")
	require.Contains(t, data, receipt.MessageID)
	require.Contains(t, data, "Reply-To: <mrfoo@bar.com>")
	require.Contains(t, data, "Media is the massage")
	require.Contains(t, data, "text/html")
}

func TestSMTP_ReusesConnection(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	s := NewSMTP(sinkSettings(sink), nil)
	defer s.Close()

	ctx := testutil.Context(t)
	for i := 0; i < 3; i++ {
		_, err := s.Send(ctx, Compose(submission(), endpoint()))
		require.NoError(t, err)
	}

	require.Len(t, sink.Messages(), 3)
	require.Equal(t, 1, sink.Sessions(), "pooled client should be reused")
}

func TestSMTP_RedialsIdleConnection(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	cfg := sinkSettings(sink)
	cfg.SMTPIdleTimeout = time.Nanosecond
	s := NewSMTP(cfg, nil)
	defer s.Close()

	ctx := testutil.Context(t)
	for i := 0; i < 2; i++ {
		_, err := s.Send(ctx, Compose(submission(), endpoint()))
		require.NoError(t, err)
	}
	require.Equal(t, 2, sink.Sessions())
}

func TestSMTP_SendFailureIsTransportError(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	sink.RejectData()
	s := NewSMTP(sinkSettings(sink), nil)
	defer s.Close()

	_, err := s.Send(testutil.Context(t), Compose(submission(), endpoint()))
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %T", err)
	require.Equal(t, "send", terr.Op)
	require.Empty(t, sink.Messages())
}

func TestSMTP_DialFailure(t *testing.T) {
	s := NewSMTP(config.ServerSettings{
		SMTPServer:   "127.0.0.1",
		SMTPPort:     1,
		SMTPHello:    "localhost",
		SMTPTimeout:  time.Second,
		SMTPPoolSize: 1,
	}, nil)
	defer s.Close()

	_, err := s.Send(testutil.Context(t), Compose(submission(), endpoint()))
	var terr *TransportError
	require.True(t, errors.As(err, &terr), "got %v", err)
	require.Equal(t, "dial", terr.Op)

	require.Error(t, s.Ping(testutil.Context(t)))
}

func TestSMTP_PingAndClose(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	s := NewSMTP(sinkSettings(sink), nil)

	require.NoError(t, s.Ping(testutil.Context(t)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Send(testutil.Context(t), Compose(submission(), endpoint()))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSMTP_WaitsForSlotWithContext(t *testing.T) {
	sink := testutil.NewSMTPSink(t)
	s := NewSMTP(sinkSettings(sink), nil)
	defer s.Close()

	held := <-s.slots
	defer func() { s.slots <- held }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Send(ctx, Compose(submission(), endpoint()))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
