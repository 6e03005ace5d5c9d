package domain

import (
	"strings"

	"github.com/djlord-it/billing-cron/internal/failure"
)

// DefaultTimezone applies when the operator gives none.
const DefaultTimezone = "UTC"

// ScheduleRequest is the operator input for deferring a billing change.
// Exactly one of Time and Cron is expected; that rule is enforced by the
// recurrence normalizer, not here.
type ScheduleRequest struct {
	ProjectID        string `validate:"required"`
	BillingAccountID string
	Action           Action `validate:"required,oneof=enable disable"`

	Time     string // HH:MM, daily
	Cron     string // raw five-field expression
	Timezone string // IANA name, defaults to UTC
}

// Validate checks the fields that do not depend on the time source.
func (r ScheduleRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return failure.Invalid("project id must not be blank")
	}
	if r.Action == ActionEnable && strings.TrimSpace(r.BillingAccountID) == "" {
		return failure.Invalid("billing account id is required to enable billing")
	}
	return nil
}

// Mutation is the payload the scheduled job carries to the callback.
func (r ScheduleRequest) Mutation() BillingMutationRequest {
	m := BillingMutationRequest{
		ProjectID: r.ProjectID,
		Enable:    r.Action == ActionEnable,
	}
	if m.Enable {
		acct := r.BillingAccountID
		m.BillingAccountID = &acct
	}
	return m
}

// TimezoneOrDefault returns the requested timezone or UTC.
func (r ScheduleRequest) TimezoneOrDefault() string {
	if r.Timezone == "" {
		return DefaultTimezone
	}
	return r.Timezone
}
