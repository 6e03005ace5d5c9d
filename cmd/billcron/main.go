package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/djlord-it/billing-cron/internal/config"
	"github.com/djlord-it/billing-cron/internal/failure"
	"github.com/djlord-it/billing-cron/internal/gcp"
	"github.com/djlord-it/billing-cron/internal/logging"
	"github.com/djlord-it/billing-cron/internal/registrar"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess         = 0
	exitRuntimeError    = 1
	exitInvalidRequest  = 2
	exitServiceDisabled = 3
	exitPermission      = 4
	exitUnauthenticated = 5
	exitNotFound        = 6
)

// app holds the process collaborators so commands can run against fakes.
type app struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig   func() (config.Config, error)
	newRegistrar func(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*registrar.Registrar, error)
}

func newApp() *app {
	return &app{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		loadConfig:   config.Load,
		newRegistrar: newCloudRegistrar,
	}
}

func main() {
	os.Exit(newApp().run(context.Background(), os.Args[1:]))
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		a.printUsage()
		return exitRuntimeError
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "schedule-enable":
		return a.runSchedule(ctx, cmd, true, rest)
	case "schedule-disable":
		return a.runSchedule(ctx, cmd, false, rest)
	case "serve":
		return a.runServe()
	case "validate":
		return a.runValidate()
	case "config":
		return a.runConfig()
	case "version":
		return a.runVersion()
	case "--help", "-h", "help":
		a.printUsage()
		return exitSuccess
	default:
		fmt.Fprintf(a.stderr, "unknown command: %s\n", cmd)
		a.printUsage()
		return exitRuntimeError
	}
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stdout, `billcron - scheduled billing enable/disable for Google Cloud projects

Usage:
  billcron <command> [arguments]

Commands:
  schedule-enable <projectId> <billingAccountId> (--time HH:MM | --cron EXPR) [--timezone TZ]
             Register a job that links the project to the billing account
  schedule-disable <projectId> (--time HH:MM | --cron EXPR) [--timezone TZ]
             Register a job that removes the project's billing account
  serve      Start the callback endpoint invoked by Cloud Scheduler
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  GOOGLE_CLOUD_PROJECT      Project that owns the jobs (default: from credentials)
  SCHEDULER_LOCATION        Cloud Scheduler region (default: "us-central1")
  CALLBACK_URL              Public URL of the callback endpoint (required to schedule)
  CALLBACK_SECRET           Shared secret for the X-Billing-Signature header (optional)
  CALLBACK_SERVICE_ACCOUNT  Service account for the scheduler's OIDC token (optional)
  DEFAULT_TIMEZONE          Timezone when --timezone is omitted (default: "UTC")

  LOG_LEVEL                 trace, debug, info, warn, error (default: "info")
  LOG_FORMAT                json or console (default: "json")

  HTTP_ADDR                 HTTP server address (default: ":8080", or ":$PORT")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  REDIS_ADDR                Redis address for execution analytics (optional)
  REDIS_PASSWORD            Redis password (optional)
  REDIS_DB                  Redis database number (default: "0")
  ANALYTICS_RETENTION       Analytics key retention (default: "720h")`)
}

func (a *app) runValidate() int {
	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitInvalidRequest
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitInvalidRequest
	}
	if err := config.ValidateSchedule(cfg); err != nil {
		fmt.Fprintf(a.stdout, "configuration valid for serve; scheduling unavailable:\n%v\n", err)
		return exitSuccess
	}

	fmt.Fprintln(a.stdout, "configuration valid")
	return exitSuccess
}

func (a *app) runConfig() int {
	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitInvalidRequest
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(a.stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Fprintln(a.stdout, string(data))
	return exitSuccess
}

func (a *app) runVersion() int {
	fmt.Fprintf(a.stdout, "billcron version %s (commit: %s)\n", version, commit)
	return exitSuccess
}

// reportFailure prints a classified error and its remediation hint.
func (a *app) reportFailure(err error) int {
	ferr := failure.Classify(err)
	fmt.Fprintf(a.stderr, "error [%s]: %s\n", ferr.Category, ferr.Message)
	if ferr.Remediation != "" {
		fmt.Fprintf(a.stderr, "hint: %s\n", ferr.Remediation)
	}
	return exitCodeFor(ferr.Category)
}

func exitCodeFor(c failure.Category) int {
	switch c {
	case failure.CategoryInvalidRequest:
		return exitInvalidRequest
	case failure.CategoryServiceDisabled:
		return exitServiceDisabled
	case failure.CategoryPermissionDenied:
		return exitPermission
	case failure.CategoryUnauthenticated:
		return exitUnauthenticated
	case failure.CategoryNotFound:
		return exitNotFound
	default:
		return exitRuntimeError
	}
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, w)
	logging.SetGlobal(logger)
	return logger
}

// newCloudRegistrar builds a registrar backed by Cloud Scheduler using
// Application Default Credentials.
func newCloudRegistrar(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*registrar.Registrar, error) {
	sched, err := gcp.NewScheduler(ctx)
	if err != nil {
		return nil, err
	}
	return registrar.New(registrarConfig(cfg), sched, gcp.NewProjectResolver(cfg.ProjectID), logger), nil
}

func registrarConfig(cfg config.Config) registrar.Config {
	return registrar.Config{
		Location:       cfg.Location,
		CallbackURL:    cfg.CallbackURL,
		CallbackSecret: cfg.CallbackSecret,
		ServiceAccount: cfg.CallbackServiceAccount,
	}
}
