package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/djlord-it/billing-cron/internal/config"
	"github.com/djlord-it/billing-cron/internal/cron"
	"github.com/djlord-it/billing-cron/internal/domain"
	"github.com/djlord-it/billing-cron/internal/registrar"
)

type scheduleFlags struct {
	time       string
	expression string
	timezone   string
	positional []string
}

// parseScheduleArgs accepts flags before, between or after the positional
// arguments.
func parseScheduleArgs(name string, args []string, stderr io.Writer) (scheduleFlags, error) {
	var f scheduleFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.time, "time", "", "daily fire time as HH:MM (24-hour)")
	fs.StringVar(&f.expression, "cron", "", "five-field cron expression")
	fs.StringVar(&f.timezone, "timezone", "", "IANA timezone (default DEFAULT_TIMEZONE)")

	for {
		if err := fs.Parse(args); err != nil {
			return scheduleFlags{}, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return f, nil
		}
		f.positional = append(f.positional, rest[0])
		args = rest[1:]
	}
}

func (a *app) runSchedule(ctx context.Context, name string, enable bool, args []string) int {
	flags, err := parseScheduleArgs(name, args, a.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return exitInvalidRequest
	}

	want := 1
	usage := name + " <projectId>"
	if enable {
		want = 2
		usage = name + " <projectId> <billingAccountId>"
	}
	if len(flags.positional) != want {
		fmt.Fprintf(a.stderr, "usage: billcron %s (--time HH:MM | --cron EXPR) [--timezone TZ]\n", usage)
		return exitInvalidRequest
	}

	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return exitInvalidRequest
	}

	req := domain.ScheduleRequest{
		ProjectID: flags.positional[0],
		Action:    domain.ActionFor(enable),
		Time:      flags.time,
		Cron:      flags.expression,
		Timezone:  flags.timezone,
	}
	if enable {
		req.BillingAccountID = flags.positional[1]
	}
	if req.Timezone == "" {
		req.Timezone = cfg.DefaultTimezone
	}

	// Input and configuration are checked before any client is created.
	if err := req.Validate(); err != nil {
		return a.reportFailure(err)
	}
	if _, err := cron.Normalize(cron.Spec{Time: req.Time, Expression: req.Cron, Timezone: req.TimezoneOrDefault()}); err != nil {
		return a.reportFailure(err)
	}
	if err := config.ValidateSchedule(cfg); err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return exitInvalidRequest
	}

	logger := newLogger(cfg, a.stderr)
	reg, err := a.newRegistrar(ctx, cfg, logger)
	if err != nil {
		return a.reportFailure(err)
	}

	res, err := reg.Schedule(ctx, req)
	if err != nil {
		return a.reportFailure(err)
	}

	a.printScheduled(req, res)
	return exitSuccess
}

func (a *app) printScheduled(req domain.ScheduleRequest, res registrar.Result) {
	rec := res.Recurrence
	fmt.Fprintf(a.stdout, "Scheduled %s for project %s\n", req.Action, req.ProjectID)
	fmt.Fprintf(a.stdout, "  job:       %s\n", res.Job.Name)
	fmt.Fprintf(a.stdout, "  schedule:  %s (%s)\n", rec.Expression, rec.Timezone)
	if req.Action == domain.ActionEnable {
		fmt.Fprintf(a.stdout, "  account:   %s\n", req.BillingAccountID)
	}

	switch {
	case res.NextRunKnown:
		fmt.Fprintf(a.stdout, "  next run:  %s\n", formatIn(res.NextRun, rec.Timezone))
	case !res.Estimate.IsZero():
		fmt.Fprintf(a.stdout, "  next run:  not yet available (estimated %s)\n", formatIn(res.Estimate, rec.Timezone))
	default:
		fmt.Fprintln(a.stdout, "  next run:  not yet available")
	}
}

func formatIn(t time.Time, tz string) string {
	if loc, err := time.LoadLocation(tz); err == nil {
		t = t.In(loc)
	}
	return t.Format(time.RFC3339)
}
