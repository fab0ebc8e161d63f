// Package relay runs a contact submission through endpoint lookup, length
// validation and the deliverability check, then mails it to the endpoint
// owner. The first failing stage ends the pipeline; nothing is sent unless
// every check passes.
package relay

import (
	"context"
	"net/http"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/contact"
	"github.com/dalemusser/contactrelay/mailer"
	"go.uber.org/zap"
)

// Stage names a pipeline step.
type Stage string

const (
	StageResolve        Stage = "resolve"
	StageLength         Stage = "length"
	StageDeliverability Stage = "deliverability"
	StageSend           Stage = "send"
	StageDone           Stage = "done"
)

// StatusSuccess is the response text for a delivered submission.
const StatusSuccess = "success"

// ExistenceChecker decides whether a submitter's address can receive a
// reply.
type ExistenceChecker interface {
	CheckExistence(ctx context.Context, sub contact.Submission) contact.Verdict
}

// CheckerFunc adapts a function to ExistenceChecker.
type CheckerFunc func(ctx context.Context, sub contact.Submission) contact.Verdict

func (f CheckerFunc) CheckExistence(ctx context.Context, sub contact.Submission) contact.Verdict {
	return f(ctx, sub)
}

// Outcome is the terminal state of one Process call. Err is nil only when
// Stage is StageDone.
type Outcome struct {
	Stage    Stage
	Endpoint config.EndpointConfig
	Receipt  mailer.Receipt
	Err      *Error
}

// Resolved reports whether the submission matched a configured endpoint.
func (o Outcome) Resolved() bool {
	return o.Stage != StageResolve
}

// HTTPStatus maps the outcome to a response code.
func (o Outcome) HTTPStatus() int {
	if o.Err != nil {
		return o.Err.HTTPStatus()
	}
	return http.StatusOK
}

// Text is the caller-facing status text.
func (o Outcome) Text() string {
	if o.Err != nil {
		return o.Err.Message
	}
	return StatusSuccess
}

// Relay holds the collaborators shared by every request.
type Relay struct {
	cfg     *config.Config
	checker ExistenceChecker
	sender  mailer.Sender
	logger  *zap.Logger
}

// New returns a Relay for cfg. cfg must not be modified afterwards.
func New(cfg *config.Config, checker ExistenceChecker, sender mailer.Sender, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{cfg: cfg, checker: checker, sender: sender, logger: logger}
}

// Process runs the pipeline for sub as received from the client.
func (r *Relay) Process(ctx context.Context, sub contact.Submission) Outcome {
	ep, ok := r.cfg.Lookup(sub.Identifier)
	if !ok {
		return Outcome{Stage: StageResolve, Err: unregistered(sub.Identifier)}
	}

	if v := contact.CheckLength(sub, ep); !v.OK() {
		return Outcome{Stage: StageLength, Endpoint: ep, Err: tooLarge(v.Err())}
	}

	if v := r.checker.CheckExistence(ctx, sub); !v.OK() {
		return Outcome{Stage: StageDeliverability, Endpoint: ep, Err: undeliverable(v.Err())}
	}

	receipt, err := r.sender.Send(ctx, mailer.Compose(sub, ep))
	if err != nil {
		return Outcome{Stage: StageSend, Endpoint: ep, Err: transport(err)}
	}

	return Outcome{Stage: StageDone, Endpoint: ep, Receipt: receipt}
}
