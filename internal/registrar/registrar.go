// Package registrar turns a schedule request into a job on the external
// scheduling service.
package registrar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/djlord-it/billing-cron/internal/cron"
	"github.com/djlord-it/billing-cron/internal/domain"
	"github.com/djlord-it/billing-cron/internal/failure"
	"github.com/djlord-it/billing-cron/internal/payload"
)

// SchedulerClient is the scheduling service.
type SchedulerClient interface {
	CreateJob(ctx context.Context, parent string, job domain.JobDescriptor) (domain.RegisteredJob, error)
	GetJob(ctx context.Context, name string) (domain.RegisteredJob, error)
}

// ProjectResolver returns the project the current process runs as. Jobs are
// registered there, never under the project whose billing they change.
type ProjectResolver interface {
	ProjectID(ctx context.Context) (string, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config is the deployment-bound part of registration.
type Config struct {
	Location    string // scheduling region, e.g. us-central1
	CallbackURL string

	// CallbackSecret, when set, signs the job body.
	CallbackSecret string
	// ServiceAccount, when set, makes the scheduler attach an OIDC token.
	ServiceAccount string
}

// Result is what the operator is told after registration.
type Result struct {
	Job        domain.RegisteredJob
	Recurrence cron.Recurrence

	// NextRun is the service-computed next fire time. When the service has
	// not computed it yet, NextRunKnown is false and Estimate holds a local
	// preview instead.
	NextRun      time.Time
	NextRunKnown bool
	Estimate     time.Time
}

type Registrar struct {
	cfg      Config
	client   SchedulerClient
	projects ProjectResolver
	parser   *cron.Parser
	clock    Clock
	logger   zerolog.Logger
}

func New(cfg Config, client SchedulerClient, projects ProjectResolver, logger zerolog.Logger) *Registrar {
	return &Registrar{
		cfg:      cfg,
		client:   client,
		projects: projects,
		parser:   cron.NewParser(),
		clock:    systemClock{},
		logger:   logger.With().Str("component", "registrar").Logger(),
	}
}

// WithClock replaces the clock used for job identities.
func (r *Registrar) WithClock(c Clock) *Registrar {
	r.clock = c
	return r
}

// Schedule validates and normalizes req, then registers it.
func (r *Registrar) Schedule(ctx context.Context, req domain.ScheduleRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	rec, err := cron.Normalize(cron.Spec{
		Time:       req.Time,
		Expression: req.Cron,
		Timezone:   req.TimezoneOrDefault(),
	})
	if err != nil {
		return Result{}, err
	}
	return r.Register(ctx, req, rec)
}

// Register builds the job descriptor for req and rec and creates it. Errors
// from the create call are returned unmodified; no retry is attempted.
func (r *Registrar) Register(ctx context.Context, req domain.ScheduleRequest, rec cron.Recurrence) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if r.cfg.CallbackURL == "" {
		return Result{}, failure.Invalid("callback URL is not configured (set CALLBACK_URL)")
	}
	if r.cfg.Location == "" {
		return Result{}, failure.Invalid("scheduler location is not configured (set SCHEDULER_LOCATION)")
	}

	localProject, err := r.projects.ProjectID(ctx)
	if err != nil || localProject == "" {
		msg := "cannot resolve the local project (set GOOGLE_CLOUD_PROJECT)"
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		return Result{}, failure.Invalid("%s", msg)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", localProject, r.cfg.Location)
	desc, err := r.Describe(parent, req, rec)
	if err != nil {
		return Result{}, err
	}

	created, err := r.client.CreateJob(ctx, parent, desc)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info().
		Str("job", created.Name).
		Str("target_project", req.ProjectID).
		Str("action", string(req.Action)).
		Str("schedule", desc.Schedule).
		Str("timezone", desc.TimeZone).
		Msg("job registered")

	res := Result{Job: created, Recurrence: rec}
	r.readNextRun(ctx, &res, rec)
	return res, nil
}

// Describe builds the job descriptor without contacting any service.
func (r *Registrar) Describe(parent string, req domain.ScheduleRequest, rec cron.Recurrence) (domain.JobDescriptor, error) {
	mutation := req.Mutation()
	body, err := payload.Marshal(mutation)
	if err != nil {
		return domain.JobDescriptor{}, err
	}
	encoded, err := payload.Encode(mutation)
	if err != nil {
		return domain.JobDescriptor{}, err
	}

	headers := map[string]string{"Content-Type": payload.ContentType}
	if r.cfg.CallbackSecret != "" {
		headers[payload.SignatureHeader] = payload.Sign(r.cfg.CallbackSecret, body)
	}

	return domain.JobDescriptor{
		Name:     parent + "/jobs/" + JobID(req.Action, req.ProjectID, r.clock.Now()),
		Schedule: rec.Expression,
		TimeZone: rec.Timezone,
		Target: domain.HTTPTarget{
			URI:            r.cfg.CallbackURL,
			Method:         http.MethodPost,
			Body:           encoded,
			Headers:        headers,
			ServiceAccount: r.cfg.ServiceAccount,
		},
	}, nil
}

// readNextRun performs the single follow-up read. Neither a missing time nor
// a failed read is an error: the job already exists.
func (r *Registrar) readNextRun(ctx context.Context, res *Result, rec cron.Recurrence) {
	job, err := r.client.GetJob(ctx, res.Job.Name)
	if err != nil {
		r.logger.Warn().Err(err).Str("job", res.Job.Name).Msg("could not read next run time")
	} else {
		res.Job = job
		if !job.NextRun.IsZero() {
			res.NextRun = job.NextRun
			res.NextRunKnown = true
			return
		}
	}

	if est, err := r.parser.Next(rec.Expression, rec.Timezone, r.clock.Now()); err == nil {
		res.Estimate = est
	}
}

// JobID is billing-{action}-{project}-{unix millis}. Two schedules for the
// same project and action yield two distinct jobs; nothing is deduplicated.
// Characters outside [A-Za-z0-9_-] (domain-scoped projects use ':' and '.')
// become '-'.
func JobID(action domain.Action, projectID string, at time.Time) string {
	return fmt.Sprintf("billing-%s-%s-%d", action, sanitizeID(projectID), at.UnixMilli())
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
