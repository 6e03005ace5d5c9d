// Package gcp adapts the Cloud Scheduler and Cloud Billing REST clients to
// the interfaces the registrar and executor depend on.
package gcp

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/cloudscheduler/v1"
	"google.golang.org/api/option"

	"github.com/djlord-it/billing-cron/internal/domain"
)

// Scheduler creates and reads Cloud Scheduler jobs.
type Scheduler struct {
	jobs *cloudscheduler.ProjectsLocationsJobsService
}

// NewScheduler builds a client from Application Default Credentials unless
// opts say otherwise.
func NewScheduler(ctx context.Context, opts ...option.ClientOption) (*Scheduler, error) {
	svc, err := cloudscheduler.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloud scheduler client: %w", err)
	}
	return &Scheduler{jobs: svc.Projects.Locations.Jobs}, nil
}

// CreateJob returns the service error unwrapped so it can be classified.
func (s *Scheduler) CreateJob(ctx context.Context, parent string, job domain.JobDescriptor) (domain.RegisteredJob, error) {
	created, err := s.jobs.Create(parent, toJob(job)).Context(ctx).Do()
	if err != nil {
		return domain.RegisteredJob{}, err
	}
	return fromJob(created), nil
}

func (s *Scheduler) GetJob(ctx context.Context, name string) (domain.RegisteredJob, error) {
	job, err := s.jobs.Get(name).Context(ctx).Do()
	if err != nil {
		return domain.RegisteredJob{}, err
	}
	return fromJob(job), nil
}

func toJob(d domain.JobDescriptor) *cloudscheduler.Job {
	target := &cloudscheduler.HttpTarget{
		Uri:        d.Target.URI,
		HttpMethod: d.Target.Method,
		Body:       d.Target.Body,
		Headers:    d.Target.Headers,
	}
	if d.Target.ServiceAccount != "" {
		target.OidcToken = &cloudscheduler.OidcToken{
			ServiceAccountEmail: d.Target.ServiceAccount,
			Audience:            d.Target.URI,
		}
	}
	return &cloudscheduler.Job{
		Name:       d.Name,
		Schedule:   d.Schedule,
		TimeZone:   d.TimeZone,
		HttpTarget: target,
	}
}

func fromJob(j *cloudscheduler.Job) domain.RegisteredJob {
	out := domain.RegisteredJob{
		Name:     j.Name,
		Schedule: j.Schedule,
		TimeZone: j.TimeZone,
		State:    j.State,
	}
	if j.ScheduleTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.ScheduleTime); err == nil {
			out.NextRun = t
		}
	}
	return out
}
