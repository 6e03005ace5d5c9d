// Package cron turns operator time specifications into the five-field
// recurrence grammar understood by the scheduling service.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser checks five-field expressions (minute, hour, day-of-month, month,
// day-of-week) and previews their next fire time.
type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Parse compiles expression in timezone.
func (p *Parser) Parse(expression string, timezone string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	return &schedule{sched: sched, loc: loc}, nil
}

// Next returns the first fire time of expression strictly after the given
// instant.
func (p *Parser) Next(expression, timezone string, after time.Time) (time.Time, error) {
	sched, err := p.Parse(expression, timezone)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

type Schedule interface {
	Next(after time.Time) time.Time
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}
