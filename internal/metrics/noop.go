package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) CallbackCompleted(statusClass string, duration time.Duration)    {}
func (n *NoopSink) MutationOutcome(action, outcome string, duration time.Duration) {}
