package domain

import "time"

// JobDescriptor is the job handed to the scheduling service. It is immutable
// once built; the scheduling service owns its lifecycle afterwards.
type JobDescriptor struct {
	Name     string // full resource name, projects/{p}/locations/{l}/jobs/{id}
	Schedule string
	TimeZone string
	Target   HTTPTarget
}

// HTTPTarget is the callback invoked when the job fires.
type HTTPTarget struct {
	URI     string
	Method  string
	Body    string // base64 of the JSON payload
	Headers map[string]string

	// ServiceAccount, when set, asks the scheduling service to attach an
	// OIDC token for this identity.
	ServiceAccount string
}

// RegisteredJob is the scheduling service's view of a job.
type RegisteredJob struct {
	Name     string
	Schedule string
	TimeZone string
	State    string
	NextRun  time.Time // zero when not yet computed
}
