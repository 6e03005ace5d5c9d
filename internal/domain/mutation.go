package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/djlord-it/billing-cron/internal/failure"
)

const billingAccountPrefix = "billingAccounts/"

var validate = validator.New()

// BillingMutationRequest is the decoded callback payload.
type BillingMutationRequest struct {
	ProjectID        string  `json:"projectId" validate:"required"`
	BillingAccountID *string `json:"billingAccountId"`
	Enable           bool    `json:"enable"`
}

// Validate enforces that a billing account is present iff enabling. A
// disable request may carry an account id; it is ignored.
func (m BillingMutationRequest) Validate() error {
	if err := validateStruct(m); err != nil {
		return err
	}
	if strings.TrimSpace(m.ProjectID) == "" {
		return failure.Invalid("projectId must not be blank")
	}
	if m.Enable && (m.BillingAccountID == nil || strings.TrimSpace(*m.BillingAccountID) == "") {
		return failure.Invalid("billingAccountId is required when enable is true")
	}
	return nil
}

func (m BillingMutationRequest) Action() Action {
	return ActionFor(m.Enable)
}

// ProjectName is the billing service resource name of the target project.
func (m BillingMutationRequest) ProjectName() string {
	return "projects/" + m.ProjectID
}

// BillingInfo is the update sent to the billing service. Disabling always
// clears the account linkage.
func (m BillingMutationRequest) BillingInfo() BillingInfo {
	if !m.Enable || m.BillingAccountID == nil {
		return BillingInfo{}
	}
	acct := strings.TrimPrefix(*m.BillingAccountID, billingAccountPrefix)
	return BillingInfo{
		BillingAccountName: billingAccountPrefix + acct,
		BillingEnabled:     true,
	}
}

// BillingInfo mirrors the billing service's project billing info update.
type BillingInfo struct {
	BillingAccountName string
	BillingEnabled     bool
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return failure.Invalid("%s is required", fe.Field())
		}
		return failure.Invalid("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
	return failure.Invalid("%v", err)
}
