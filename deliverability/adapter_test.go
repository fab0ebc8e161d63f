package deliverability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/contactrelay/contact"
	"github.com/dalemusser/contactrelay/workers"
)

func sub(email string) contact.Submission {
	return contact.Submission{Name: "Mr. Foo Bar", Email: email, Message: "hi", Identifier: "site"}
}

func good() Report {
	return Report{
		Syntax: Syntax{ValidFormat: true},
		SMTP:   SMTP{IsDeliverable: true},
	}
}

// fixed serves r, splitting it the way a real probe would: the mailbox
// half comes back from Mailbox, the rest from Local.
func fixed(r Report) ProbeFuncs {
	return ProbeFuncs{
		LocalFunc: func(email string) Report {
			local := r
			local.SMTP = SMTP{}
			return local
		},
		MailboxFunc: func(ctx context.Context, email string) (SMTP, error) {
			return r.SMTP, nil
		},
	}
}

func adapterFor(r Report) *Adapter {
	return NewAdapter(fixed(r), workers.NewPool(2, nil), time.Second, nil)
}

func TestCheckExistence_Policy(t *testing.T) {
	skipped := fmt.Errorf("%w: blocked", ErrSkipped)
	broken := errors.New("dial tcp: i/o timeout")

	tests := []struct {
		name   string
		report func() Report
		rules  []string
	}{
		{"all good", good, nil},
		{"invalid format", func() Report { r := good(); r.Syntax.ValidFormat = false; return r }, []string{"syntax"}},
		{"syntax error", func() Report { r := good(); r.SyntaxErr = broken; return r }, []string{"syntax"}},
		{"full inbox", func() Report { r := good(); r.SMTP.HasFullInbox = true; return r }, []string{"full_inbox"}},
		{"undeliverable", func() Report { r := good(); r.SMTP.IsDeliverable = false; return r }, []string{"undeliverable"}},
		{"disabled", func() Report { r := good(); r.SMTP.IsDisabled = true; return r }, []string{"disabled"}},
		{"disposable", func() Report { r := good(); r.Misc.IsDisposable = true; return r }, []string{"disposable"}},
		{"smtp skipped", func() Report { r := good(); r.SMTP = SMTP{}; r.SMTPErr = skipped; return r }, nil},
		{"smtp failed", func() Report { r := good(); r.SMTP = SMTP{}; r.SMTPErr = broken; return r }, nil},
		{"misc failed", func() Report { r := good(); r.MiscErr = broken; r.Misc.IsDisposable = true; return r }, nil},
		{"everything at once", func() Report {
			return Report{
				Syntax: Syntax{ValidFormat: false},
				SMTP:   SMTP{HasFullInbox: true, IsDeliverable: false, IsDisabled: true},
				Misc:   Misc{IsDisposable: true},
			}
		}, []string{"syntax", "full_inbox", "undeliverable", "disabled", "disposable"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := adapterFor(tt.report()).CheckExistence(context.Background(), sub("mrfoo@bar.com"))
			var got []string
			for _, vi := range v.Violations {
				got = append(got, vi.Rule)
			}
			if strings.Join(got, ",") != strings.Join(tt.rules, ",") {
				t.Errorf("rules = %v, want %v (%q)", got, tt.rules, v.String())
			}
		})
	}
}

func TestCheckExistence_ConclusiveNegative(t *testing.T) {
	r := good()
	r.SMTP.IsDeliverable = false
	v := adapterFor(r).CheckExistence(context.Background(), sub("nobody@bar.com"))

	if v.OK() {
		t.Fatal("undeliverable address must be rejected")
	}
	want := `Email can't be delivered to address "nobody@bar.com".`
	if v.String() != want {
		t.Errorf("message = %q, want %q", v.String(), want)
	}
	if v.Err() == nil {
		t.Error("Err() should be a ValidationError")
	}
}

func TestCheckExistence_AllSkippedPasses(t *testing.T) {
	r := Report{
		SyntaxErr: ErrSkipped,
		SMTPErr:   ErrSkipped,
		MiscErr:   ErrSkipped,
	}
	for _, email := range []string{"mrfoo@bar.com", "garbage", ""} {
		if v := adapterFor(r).CheckExistence(context.Background(), sub(email)); !v.OK() {
			t.Errorf("%q: all-skipped probe should pass, got %q", email, v.String())
		}
	}
}

func TestCheckExistence_SlowMailboxIsInconclusive(t *testing.T) {
	probe := ProbeFuncs{
		LocalFunc: func(email string) Report { return Report{Syntax: Syntax{ValidFormat: true}} },
		MailboxFunc: func(ctx context.Context, email string) (SMTP, error) {
			<-ctx.Done()
			return SMTP{}, ctx.Err()
		},
	}
	a := NewAdapter(probe, workers.NewPool(1, nil), 20*time.Millisecond, nil)

	start := time.Now()
	v := a.CheckExistence(context.Background(), sub("mrfoo@bar.com"))
	if !v.OK() {
		t.Errorf("timed out mailbox check should not block: %q", v.String())
	}
	if time.Since(start) > time.Second {
		t.Error("CheckExistence did not honour the probe timeout")
	}
}

func TestCheckExistence_SlowMailboxKeepsLocalVerdicts(t *testing.T) {
	mailboxCalled := make(chan struct{}, 1)
	probe := ProbeFuncs{
		LocalFunc: func(email string) Report {
			return Report{Syntax: Syntax{ValidFormat: true}, Misc: Misc{IsDisposable: true}}
		},
		MailboxFunc: func(ctx context.Context, email string) (SMTP, error) {
			mailboxCalled <- struct{}{}
			time.Sleep(200 * time.Millisecond) // ignores ctx, like a blocking SMTP dial
			return SMTP{IsDeliverable: true}, nil
		},
	}
	a := NewAdapter(probe, workers.NewPool(1, nil), 20*time.Millisecond, nil)

	v := a.CheckExistence(context.Background(), sub("someone@mailinator.com"))

	select {
	case <-mailboxCalled:
	case <-time.After(time.Second):
		t.Fatal("mailbox check was not started")
	}
	want := `The provided email address "someone@mailinator.com" seems to be a disposable/invalid address.`
	if v.String() != want {
		t.Errorf("verdict = %q, want %q", v.String(), want)
	}
}

func TestCheckExistence_InvalidSyntaxSkipsMailbox(t *testing.T) {
	probe := ProbeFuncs{
		LocalFunc: func(email string) Report {
			return Report{SMTPErr: ErrSkipped, MiscErr: ErrSkipped}
		},
		MailboxFunc: func(ctx context.Context, email string) (SMTP, error) {
			t.Error("mailbox check must not run when Local rules it out")
			return SMTP{}, nil
		},
	}
	a := NewAdapter(probe, workers.NewPool(1, nil), time.Second, nil)

	v := a.CheckExistence(context.Background(), sub("garbage"))
	if len(v.Violations) != 1 || v.Violations[0].Rule != "syntax" {
		t.Errorf("verdict = %q, want the syntax violation only", v.String())
	}
}

func TestCheckExistence_PanickingMailboxIsInconclusive(t *testing.T) {
	probe := ProbeFuncs{
		LocalFunc:   func(email string) Report { return Report{Syntax: Syntax{ValidFormat: true}} },
		MailboxFunc: func(ctx context.Context, email string) (SMTP, error) { panic("boom") },
	}
	a := NewAdapter(probe, workers.NewPool(1, nil), time.Second, nil)
	if v := a.CheckExistence(context.Background(), sub("mrfoo@bar.com")); !v.OK() {
		t.Errorf("panicking mailbox check should be inconclusive, got %q", v.String())
	}
}
