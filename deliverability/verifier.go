package deliverability

import (
	"context"
	"errors"
	"fmt"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/dalemusser/contactrelay/config"
)

// EmailVerifier is a Probe backed by AfterShip's email-verifier. Syntax and
// disposable checks run locally; the SMTP check dials the domain's MX.
type EmailVerifier struct {
	v         *emailverifier.Verifier
	smtpCheck bool
}

// NewEmailVerifier builds a probe from the probe settings.
func NewEmailVerifier(cfg config.ProbeSettings) *EmailVerifier {
	v := emailverifier.NewVerifier()
	if cfg.SMTPCheck {
		v = v.EnableSMTPCheck()
	}
	if cfg.FromEmail != "" {
		v = v.FromEmail(cfg.FromEmail)
	}
	if cfg.HelloName != "" {
		v = v.HelloName(cfg.HelloName)
	}
	return &EmailVerifier{v: v, smtpCheck: cfg.SMTPCheck}
}

// Local runs the syntax and disposable checks. Neither touches the network.
func (e *EmailVerifier) Local(email string) Report {
	var r Report

	syntax := e.v.ParseAddress(email)
	r.Syntax = Syntax{ValidFormat: syntax.Valid}
	if !syntax.Valid {
		r.SMTPErr = fmt.Errorf("%w: address is not well formed", ErrSkipped)
		r.MiscErr = fmt.Errorf("%w: address is not well formed", ErrSkipped)
		return r
	}

	r.Misc = Misc{IsDisposable: e.v.IsDisposable(syntax.Domain)}

	if !e.smtpCheck {
		r.SMTPErr = fmt.Errorf("%w: smtp check disabled", ErrSkipped)
	}
	return r
}

// Mailbox dials the domain's MX and asks about the mailbox. CheckSMTP does
// not take a context, so ctx is only consulted before dialing.
func (e *EmailVerifier) Mailbox(ctx context.Context, email string) (SMTP, error) {
	syntax := e.v.ParseAddress(email)
	if !syntax.Valid {
		return SMTP{}, fmt.Errorf("%w: address is not well formed", ErrSkipped)
	}
	if err := ctx.Err(); err != nil {
		return SMTP{}, err
	}

	res, err := e.v.CheckSMTP(syntax.Domain, syntax.Username)
	switch {
	case err != nil:
		return SMTP{}, classify(err)
	case res == nil:
		return SMTP{}, fmt.Errorf("%w: no smtp result", ErrSkipped)
	case res.CatchAll:
		// A catch-all server accepts every RCPT, so it says nothing about this mailbox.
		return SMTP{}, fmt.Errorf("%w: catch-all domain", ErrSkipped)
	}
	return SMTP{
		HasFullInbox:  res.FullInbox,
		IsDeliverable: res.Deliverable,
		IsDisabled:    res.Disabled,
	}, nil
}

// classify marks provider-side refusals to be probed as skips.
func classify(err error) error {
	var lerr *emailverifier.LookupError
	if errors.As(err, &lerr) && lerr.Message == emailverifier.ErrBlocked {
		return fmt.Errorf("%w: %v", ErrSkipped, err)
	}
	return err
}
