package api

// MutationResponse is returned on a completed callback. The scheduling
// service only looks at the status code.
type MutationResponse struct {
	ProjectID        string  `json:"projectId"`
	BillingAccountID *string `json:"billingAccountId"`
	Action           string  `json:"action"`
	Message          string  `json:"message"`
	InvocationID     string  `json:"invocationId"`
}

type ErrorResponse struct {
	Error        string `json:"error"`
	Category     string `json:"category"`
	Remediation  string `json:"remediation,omitempty"`
	InvocationID string `json:"invocationId,omitempty"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}
