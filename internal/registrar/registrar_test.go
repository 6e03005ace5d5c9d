package registrar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/djlord-it/billing-cron/internal/cron"
	"github.com/djlord-it/billing-cron/internal/domain"
	"github.com/djlord-it/billing-cron/internal/failure"
	"github.com/djlord-it/billing-cron/internal/payload"
	"github.com/djlord-it/billing-cron/internal/testutil"
)

type staticProject struct {
	id  string
	err error
}

func (s staticProject) ProjectID(ctx context.Context) (string, error) {
	return s.id, s.err
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestRegistrar(cfg Config, sched *testutil.FakeScheduler, projects ProjectResolver) *Registrar {
	return New(cfg, sched, projects, zerolog.Nop()).WithClock(testutil.NewFakeClock(fixedNow))
}

func defaultConfig() Config {
	return Config{Location: "us-central1", CallbackURL: "https://billing-callback.example.run.app/"}
}

func TestSchedule_TimeAndTimezone(t *testing.T) {
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops-project"})

	res, err := r.Schedule(testutil.TestContext(t), domain.ScheduleRequest{
		ProjectID:        "p1",
		BillingAccountID: "b1",
		Action:           domain.ActionEnable,
		Time:             "09:00",
		Timezone:         "America/Los_Angeles",
	})
	require.NoError(t, err)

	require.Len(t, sched.Creates, 1)
	job := sched.Creates[0].Job
	assert.Equal(t, "0 9 * * *", job.Schedule)
	assert.Equal(t, "America/Los_Angeles", job.TimeZone)
	assert.Equal(t, cron.Recurrence{Expression: "0 9 * * *", Timezone: "America/Los_Angeles"}, res.Recurrence)
}

func TestSchedule_RawCronPassesThrough(t *testing.T) {
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops-project"})

	_, err := r.Schedule(testutil.TestContext(t), domain.ScheduleRequest{
		ProjectID: "p1",
		Action:    domain.ActionDisable,
		Cron:      "0 18 * * 1-5",
	})
	require.NoError(t, err)

	require.Len(t, sched.Creates, 1)
	assert.Equal(t, "0 18 * * 1-5", sched.Creates[0].Job.Schedule)
	assert.Equal(t, "UTC", sched.Creates[0].Job.TimeZone)
}

func TestSchedule_InvalidInputMakesNoCalls(t *testing.T) {
	tests := []struct {
		name string
		req  domain.ScheduleRequest
	}{
		{"both time and cron", domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable, Time: "09:00", Cron: "0 9 * * *"}},
		{"neither time nor cron", domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable}},
		{"bad time", domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable, Time: "25:00"}},
		{"enable without account", domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionEnable, Time: "09:00"}},
		{"missing project", domain.ScheduleRequest{Action: domain.ActionDisable, Time: "09:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &testutil.FakeScheduler{}
			r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops-project"})

			_, err := r.Schedule(testutil.TestContext(t), tt.req)
			require.Error(t, err)
			assert.True(t, failure.IsCategory(err, failure.CategoryInvalidRequest), "got %v", err)
			assert.Empty(t, sched.Creates)
			assert.Empty(t, sched.Gets)
		})
	}
}

func TestRegister_ScopedToLocalProject(t *testing.T) {
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops-project"})

	res, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "target-project", Action: domain.ActionDisable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
	require.NoError(t, err)

	call := sched.Creates[0]
	assert.Equal(t, "projects/ops-project/locations/us-central1", call.Parent)
	assert.Equal(t,
		"projects/ops-project/locations/us-central1/jobs/billing-disable-target-project-1718452800000",
		call.Job.Name)
	assert.Equal(t, call.Job.Name, res.Job.Name)
}

func TestRegister_UnresolvedLocalProject(t *testing.T) {
	tests := []struct {
		name     string
		projects staticProject
	}{
		{"error", staticProject{err: errors.New("no credentials")}},
		{"empty", staticProject{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &testutil.FakeScheduler{}
			r := newTestRegistrar(defaultConfig(), sched, tt.projects)

			_, err := r.Register(testutil.TestContext(t),
				domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
				cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
			assert.True(t, failure.IsCategory(err, failure.CategoryInvalidRequest))
			assert.Empty(t, sched.Creates)
		})
	}
}

func TestRegister_MissingCallbackURL(t *testing.T) {
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(Config{Location: "us-central1"}, sched, staticProject{id: "ops"})

	_, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLBACK_URL")
	assert.Empty(t, sched.Creates)
}

func TestRegister_Target(t *testing.T) {
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops"})

	_, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "p1", BillingAccountID: "b1", Action: domain.ActionEnable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
	require.NoError(t, err)

	target := sched.Creates[0].Job.Target
	assert.Equal(t, "https://billing-callback.example.run.app/", target.URI)
	assert.Equal(t, "POST", target.Method)
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, target.Headers)
	assert.Empty(t, target.ServiceAccount)

	decoded, err := payload.Decode(target.Body)
	require.NoError(t, err)
	assert.Equal(t, "p1", decoded.ProjectID)
	require.NotNil(t, decoded.BillingAccountID)
	assert.Equal(t, "b1", *decoded.BillingAccountID)
	assert.True(t, decoded.Enable)
}

func TestRegister_SignsBodyAndSetsServiceAccount(t *testing.T) {
	cfg := defaultConfig()
	cfg.CallbackSecret = "shh"
	cfg.ServiceAccount = "scheduler@ops.iam.gserviceaccount.com"
	sched := &testutil.FakeScheduler{}
	r := newTestRegistrar(cfg, sched, staticProject{id: "ops"})

	_, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
	require.NoError(t, err)

	target := sched.Creates[0].Job.Target
	decoded, err := payload.Decode(target.Body)
	require.NoError(t, err)
	body, err := payload.Marshal(decoded)
	require.NoError(t, err)

	assert.True(t, payload.Verify("shh", body, target.Headers[payload.SignatureHeader]))
	assert.Equal(t, "scheduler@ops.iam.gserviceaccount.com", target.ServiceAccount)
}

func TestRegister_CreateErrorReturnedUnmodified(t *testing.T) {
	createErr := &googleapi.Error{Code: 403, Message: "The caller does not have permission"}
	sched := &testutil.FakeScheduler{CreateErr: createErr}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops"})

	_, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})

	assert.Same(t, createErr, err)
	assert.Len(t, sched.Creates, 1)
	assert.Empty(t, sched.Gets)
}

func TestRegister_ReportsServiceNextRun(t *testing.T) {
	next := time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC)
	sched := &testutil.FakeScheduler{NextRun: next}
	r := newTestRegistrar(defaultConfig(), sched, staticProject{id: "ops"})

	res, err := r.Register(testutil.TestContext(t),
		domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
		cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
	require.NoError(t, err)

	assert.Len(t, sched.Gets, 1)
	assert.True(t, res.NextRunKnown)
	assert.True(t, res.NextRun.Equal(next))
}

func TestRegister_MissingNextRunIsNotAnError(t *testing.T) {
	tests := []struct {
		name  string
		sched *testutil.FakeScheduler
	}{
		{"not computed", &testutil.FakeScheduler{}},
		{"read fails", &testutil.FakeScheduler{GetErr: errors.New("unavailable")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistrar(defaultConfig(), tt.sched, staticProject{id: "ops"})

			res, err := r.Register(testutil.TestContext(t),
				domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable},
				cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"})
			require.NoError(t, err)

			assert.False(t, res.NextRunKnown)
			assert.True(t, res.NextRun.IsZero())
			assert.True(t, res.Estimate.Equal(time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC)), "estimate %v", res.Estimate)
		})
	}
}

func TestRegister_RepeatedSchedulesCreateDistinctJobs(t *testing.T) {
	clock := testutil.NewFakeClock(fixedNow)
	sched := &testutil.FakeScheduler{}
	r := New(defaultConfig(), sched, staticProject{id: "ops"}, zerolog.Nop()).WithClock(clock)
	req := domain.ScheduleRequest{ProjectID: "p1", Action: domain.ActionDisable}
	rec := cron.Recurrence{Expression: "0 9 * * *", Timezone: "UTC"}

	_, err := r.Register(testutil.TestContext(t), req, rec)
	require.NoError(t, err)
	clock.Advance(time.Millisecond)
	_, err = r.Register(testutil.TestContext(t), req, rec)
	require.NoError(t, err)

	require.Len(t, sched.Creates, 2)
	assert.NotEqual(t, sched.Creates[0].Job.Name, sched.Creates[1].Job.Name)
}

func TestJobID(t *testing.T) {
	at := time.UnixMilli(1718452800123)

	assert.Equal(t, "billing-enable-my-proj-1718452800123", JobID(domain.ActionEnable, "my-proj", at))
	assert.Equal(t, "billing-disable-example-com-analytics-1718452800123", JobID(domain.ActionDisable, "example.com:analytics", at))
}
