package mailer

import (
	"context"
	"fmt"
	"time"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Receipt describes a message the SMTP server accepted.
type Receipt struct {
	MessageID string
	Accepted  time.Time
}

// TransportError is returned when the SMTP exchange fails. Op is "dial",
// "compose" or "send".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mailer: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
