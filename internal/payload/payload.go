// Package payload encodes billing mutations for the scheduled job body and
// decodes them again at fire time.
package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/djlord-it/billing-cron/internal/domain"
)

// ContentType is fixed on every job and required on every callback.
const ContentType = "application/json"

// Marshal serializes req as the JSON document the callback receives.
func Marshal(req domain.BillingMutationRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return body, nil
}

// Encode serializes req and base64-encodes it for the job's HTTP body field.
func Encode(req domain.BillingMutationRequest) (string, error) {
	body, err := Marshal(req)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// Decode reverses Encode.
func Decode(encoded string) (domain.BillingMutationRequest, error) {
	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.BillingMutationRequest{}, fmt.Errorf("decode payload: %w", err)
	}
	return Unmarshal(body)
}

// Unmarshal parses a JSON callback body.
func Unmarshal(body []byte) (domain.BillingMutationRequest, error) {
	var req domain.BillingMutationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.BillingMutationRequest{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return req, nil
}
