// Package deliverability decides whether a submitter's email address is
// worth replying to. An external probe reports on syntax, SMTP-level
// reachability and disposable-address signals; the Adapter turns that
// report into a contact.Verdict.
package deliverability

import (
	"context"
	"errors"
)

// ErrSkipped marks a sub-check the probe chose not to (or could not) run,
// e.g. SMTP probing disabled or blocked by the remote provider.
var ErrSkipped = errors.New("deliverability: check skipped")

// Syntax is the outcome of the address syntax check.
type Syntax struct {
	ValidFormat bool `json:"valid_format"`
}

// SMTP is the outcome of talking to the address's mail exchanger.
type SMTP struct {
	HasFullInbox  bool `json:"has_full_inbox"`
	IsDeliverable bool `json:"is_deliverable"`
	IsDisabled    bool `json:"is_disabled"`
}

// Misc carries the remaining signals.
type Misc struct {
	IsDisposable bool `json:"is_disposable"`
}

// Report holds three independent sub-check outcomes. A non-nil *Err field
// means that sub-check did not produce a result and its value is unset.
type Report struct {
	Syntax    Syntax
	SyntaxErr error
	SMTP      SMTP
	SMTPErr   error
	Misc      Misc
	MiscErr   error
}

// Conclusive reports whether every sub-check produced a result.
func (r Report) Conclusive() bool {
	return r.SyntaxErr == nil && r.SMTPErr == nil && r.MiscErr == nil
}

// Probe is the external existence-check capability, split so that the
// checks needing no network always complete.
type Probe interface {
	// Local runs the syntax and disposable checks. It sets SMTPErr when
	// the mailbox check must not run.
	Local(email string) Report
	// Mailbox asks the address's mail exchanger whether the mailbox can
	// receive mail.
	Mailbox(ctx context.Context, email string) (SMTP, error)
}

// ProbeFuncs adapts a pair of functions to Probe.
type ProbeFuncs struct {
	LocalFunc   func(email string) Report
	MailboxFunc func(ctx context.Context, email string) (SMTP, error)
}

func (f ProbeFuncs) Local(email string) Report {
	return f.LocalFunc(email)
}

func (f ProbeFuncs) Mailbox(ctx context.Context, email string) (SMTP, error) {
	return f.MailboxFunc(ctx, email)
}
