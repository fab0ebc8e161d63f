package deliverability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/contactrelay/contact"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/workers"
	"go.uber.org/zap"
)

// Adapter interprets probe reports. A conclusive negative blocks the
// submission; an inconclusive sub-check is logged and ignored.
type Adapter struct {
	probe   Probe
	pool    *workers.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdapter returns an Adapter that runs probes on pool, each bounded by
// timeout (0 means only the caller's context bounds it).
func NewAdapter(probe Probe, pool *workers.Pool, timeout time.Duration, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		pool = workers.NewPool(0, logger)
	}
	return &Adapter{probe: probe, pool: pool, timeout: timeout, logger: logger}
}

// CheckExistence probes the submission's email address and collects every
// conclusive negative into one verdict.
func (a *Adapter) CheckExistence(ctx context.Context, sub contact.Submission) contact.Verdict {
	var v contact.Verdict
	email := sub.Email

	report := a.run(ctx, email)

	switch {
	case errors.Is(report.SyntaxErr, ErrSkipped):
		a.inconclusive("email syntax", email, report.SyntaxErr)
	case report.SyntaxErr != nil:
		v.Add("email", "syntax", fmt.Sprintf("Error while checking email syntax: %v", report.SyntaxErr))
	case !report.Syntax.ValidFormat:
		v.Add("email", "syntax", fmt.Sprintf("The provided email address %q seems to be invalid.", email))
	}

	if report.SMTPErr != nil {
		a.inconclusive("SMTP validity", email, report.SMTPErr)
	} else {
		if report.SMTP.HasFullInbox {
			v.Add("email", "full_inbox", fmt.Sprintf("The provided email address %q has a full inbox and can't receive new emails.", email))
		}
		if !report.SMTP.IsDeliverable {
			v.Add("email", "undeliverable", fmt.Sprintf("Email can't be delivered to address %q.", email))
		}
		if report.SMTP.IsDisabled {
			v.Add("email", "disabled", fmt.Sprintf("Your mail server provider blocked/disabled the email address %q.", email))
		}
	}

	if report.MiscErr != nil {
		a.inconclusive("disposable email", email, report.MiscErr)
	} else if report.Misc.IsDisposable {
		v.Add("email", "disposable", fmt.Sprintf("The provided email address %q seems to be a disposable/invalid address.", email))
	}

	return v
}

// run completes the local checks, then the mailbox check on the pool
// bounded by the probe timeout. A mailbox check that does not finish in
// time leaves the local results intact.
func (a *Adapter) run(ctx context.Context, email string) Report {
	start := time.Now()
	report := a.probe.Local(email)

	outcome := "conclusive"
	if report.SMTPErr == nil {
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		f := workers.Submit(ctx, a.pool, func(ctx context.Context) (SMTP, error) {
			return a.probe.Mailbox(ctx, email)
		})
		smtp, err := f.Await(ctx)
		switch {
		case err == nil:
			report.SMTP = smtp
		case errors.Is(err, ErrSkipped):
			report.SMTPErr = err
		default:
			outcome = "error"
			report.SMTPErr = fmt.Errorf("mailbox check did not complete: %w", err)
		}
	}
	if outcome == "conclusive" && !report.Conclusive() {
		outcome = "partial"
	}
	metrics.ObserveProbe(outcome, time.Since(start))

	return report
}

func (a *Adapter) inconclusive(check, email string, err error) {
	if errors.Is(err, ErrSkipped) {
		a.logger.Info("skipped checking "+check, zap.String("email", email), zap.Error(err))
		return
	}
	a.logger.Warn("error while checking "+check, zap.String("email", email), zap.Error(err))
}
