// Package executor performs the billing mutation carried by a fired job.
package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/djlord-it/billing-cron/internal/domain"
	"github.com/djlord-it/billing-cron/internal/failure"
)

// BillingClient is the billing service.
type BillingClient interface {
	UpdateProjectBillingInfo(ctx context.Context, projectName string, info domain.BillingInfo) error
}

// AnalyticsSink records executions. Implementations must not block the
// callback on failure.
type AnalyticsSink interface {
	Record(ctx context.Context, event domain.MutationEvent)
}

// MetricsSink defines the executor metrics.
type MetricsSink interface {
	MutationOutcome(action, outcome string, duration time.Duration)
}

// Result is echoed back to the scheduling service on success.
type Result struct {
	ProjectID        string
	BillingAccountID *string
	Action           domain.Action
	Message          string
}

type Executor struct {
	billing   BillingClient
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	clock     func() time.Time
	logger    zerolog.Logger
}

func New(billing BillingClient, logger zerolog.Logger) *Executor {
	return &Executor{
		billing: billing,
		clock:   time.Now,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

func (e *Executor) WithAnalytics(sink AnalyticsSink) *Executor {
	e.analytics = sink
	return e
}

// WithMetrics attaches a metrics sink to the executor.
func (e *Executor) WithMetrics(sink MetricsSink) *Executor {
	e.metrics = sink
	return e
}

// Execute validates req and applies it. Every returned error is a
// *failure.Error; invalid requests never reach the billing service.
func (e *Executor) Execute(ctx context.Context, invocationID string, req domain.BillingMutationRequest) (Result, error) {
	start := e.clock()
	action := req.Action()

	if err := req.Validate(); err != nil {
		ferr := failure.Classify(err)
		e.finish(ctx, invocationID, req, string(ferr.Category), start)
		return Result{}, ferr
	}

	err := e.billing.UpdateProjectBillingInfo(ctx, req.ProjectName(), req.BillingInfo())
	if err != nil {
		ferr := failure.Classify(err)
		e.logger.Error().
			Err(err).
			Str("invocation_id", invocationID).
			Str("project", req.ProjectID).
			Str("action", string(action)).
			Str("category", string(ferr.Category)).
			Msg("billing update failed")
		e.finish(ctx, invocationID, req, string(ferr.Category), start)
		return Result{}, ferr
	}

	e.logger.Info().
		Str("invocation_id", invocationID).
		Str("project", req.ProjectID).
		Str("action", string(action)).
		Msg("billing updated")
	e.finish(ctx, invocationID, req, domain.OutcomeCompleted, start)

	res := Result{
		ProjectID: req.ProjectID,
		Action:    action,
	}
	if req.Enable {
		res.BillingAccountID = req.BillingAccountID
		res.Message = "billing enabled for project " + req.ProjectID + " with account " + *req.BillingAccountID
	} else {
		res.Message = "billing disabled for project " + req.ProjectID
	}
	return res, nil
}

func (e *Executor) finish(ctx context.Context, invocationID string, req domain.BillingMutationRequest, outcome string, start time.Time) {
	now := e.clock()
	if e.metrics != nil {
		e.metrics.MutationOutcome(string(req.Action()), outcome, now.Sub(start))
	}
	if e.analytics != nil && req.ProjectID != "" {
		e.analytics.Record(ctx, domain.MutationEvent{
			InvocationID: invocationID,
			ProjectID:    req.ProjectID,
			Action:       req.Action(),
			Outcome:      outcome,
			At:           now,
		})
	}
}
