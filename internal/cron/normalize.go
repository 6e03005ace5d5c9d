package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/billing-cron/internal/failure"
)

// Spec is an operator time specification. Exactly one of Time and
// Expression must be set.
type Spec struct {
	Time       string // HH:MM
	Expression string
	Timezone   string
}

// Recurrence is the canonical form every downstream component consumes.
type Recurrence struct {
	Expression string
	Timezone   string
}

var defaultParser = NewParser()

// Normalize converts spec into a single recurrence expression. A daily time
// becomes "MM HH * * *"; a raw expression is returned verbatim after a
// syntax check. The timezone is returned as given, or UTC when empty.
//
// This is the only place the time/expression exclusivity rule is enforced.
func Normalize(spec Spec) (Recurrence, error) {
	return defaultParser.Normalize(spec)
}

func (p *Parser) Normalize(spec Spec) (Recurrence, error) {
	hasTime := strings.TrimSpace(spec.Time) != ""
	hasExpr := strings.TrimSpace(spec.Expression) != ""

	switch {
	case hasTime && hasExpr:
		return Recurrence{}, failure.Invalid("specify either a time or a cron expression, not both")
	case !hasTime && !hasExpr:
		return Recurrence{}, failure.Invalid("a time (HH:MM) or a cron expression is required")
	}

	tz := spec.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if err := CheckTimezone(tz); err != nil {
		return Recurrence{}, err
	}

	if hasExpr {
		if hasTZPrefix(spec.Expression) {
			return Recurrence{}, failure.Invalid("cron expression %q must not carry a TZ prefix; use the timezone option", spec.Expression)
		}
		if _, err := p.parser.Parse(spec.Expression); err != nil {
			return Recurrence{}, failure.Invalid("invalid cron expression %q: %v", spec.Expression, err)
		}
		return Recurrence{Expression: spec.Expression, Timezone: tz}, nil
	}

	hour, minute, err := ParseClock(spec.Time)
	if err != nil {
		return Recurrence{}, err
	}
	return Recurrence{Expression: Daily(hour, minute), Timezone: tz}, nil
}

// CheckTimezone accepts IANA names only. "Local" would register the
// machine's zone under a name the scheduling service does not know.
func CheckTimezone(tz string) error {
	if tz == "Local" {
		return failure.Invalid("timezone %q is not an IANA name", tz)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return failure.Invalid("unknown timezone %q", tz)
	}
	return nil
}

func hasTZPrefix(expr string) bool {
	expr = strings.TrimSpace(expr)
	return strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=")
}

// Daily is the expression firing every day at hour:minute.
func Daily(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// ParseClock parses "HH:MM" into hour (0-23) and minute (0-59).
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, failure.Invalid("invalid time %q: expected HH:MM", s)
	}

	hour, err = clockField(hh, 23)
	if err != nil {
		return 0, 0, failure.Invalid("invalid time %q: hour %v", s, err)
	}
	minute, err = clockField(mm, 59)
	if err != nil {
		return 0, 0, failure.Invalid("invalid time %q: minute %v", s, err)
	}
	return hour, minute, nil
}

func clockField(s string, max int) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("must be one or two digits")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("must be numeric")
		}
	}
	n, _ := strconv.Atoi(s)
	if n > max {
		return 0, fmt.Errorf("must be between 0 and %d", max)
	}
	return n, nil
}
