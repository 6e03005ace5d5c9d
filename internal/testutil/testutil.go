// Package testutil provides shared fakes for the scheduling and billing
// services.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/billing-cron/internal/domain"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CreateCall records one CreateJob invocation.
type CreateCall struct {
	Parent string
	Job    domain.JobDescriptor
}

// FakeScheduler is an in-memory scheduling service.
type FakeScheduler struct {
	mu sync.Mutex

	Creates []CreateCall
	Gets    []string

	CreateErr error
	GetErr    error
	// NextRun is reported by GetJob; zero means not yet computed.
	NextRun time.Time
}

func (f *FakeScheduler) CreateJob(ctx context.Context, parent string, job domain.JobDescriptor) (domain.RegisteredJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Creates = append(f.Creates, CreateCall{Parent: parent, Job: job})
	if f.CreateErr != nil {
		return domain.RegisteredJob{}, f.CreateErr
	}
	return domain.RegisteredJob{
		Name:     job.Name,
		Schedule: job.Schedule,
		TimeZone: job.TimeZone,
		State:    "ENABLED",
	}, nil
}

func (f *FakeScheduler) GetJob(ctx context.Context, name string) (domain.RegisteredJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Gets = append(f.Gets, name)
	if f.GetErr != nil {
		return domain.RegisteredJob{}, f.GetErr
	}
	for _, c := range f.Creates {
		if c.Job.Name == name {
			return domain.RegisteredJob{
				Name:     name,
				Schedule: c.Job.Schedule,
				TimeZone: c.Job.TimeZone,
				State:    "ENABLED",
				NextRun:  f.NextRun,
			}, nil
		}
	}
	return domain.RegisteredJob{}, &notFoundError{name: name}
}

type notFoundError struct{ name string }

func (e *notFoundError) Error() string { return "job not found: " + e.name }

// BillingCall records one UpdateProjectBillingInfo invocation.
type BillingCall struct {
	ProjectName string
	Info        domain.BillingInfo
}

// FakeBilling is an in-memory billing service.
type FakeBilling struct {
	mu    sync.Mutex
	Calls []BillingCall
	Err   error
}

func (f *FakeBilling) UpdateProjectBillingInfo(ctx context.Context, projectName string, info domain.BillingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, BillingCall{ProjectName: projectName, Info: info})
	return f.Err
}

// CallCount returns the number of billing updates received.
func (f *FakeBilling) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
