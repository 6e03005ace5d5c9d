package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/cloudbilling/v1"
	"google.golang.org/api/option"

	"github.com/djlord-it/billing-cron/internal/domain"
)

// Billing updates the billing association of projects.
type Billing struct {
	projects *cloudbilling.ProjectsService
}

func NewBilling(ctx context.Context, opts ...option.ClientOption) (*Billing, error) {
	svc, err := cloudbilling.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloud billing client: %w", err)
	}
	return &Billing{projects: svc.Projects}, nil
}

// UpdateProjectBillingInfo always sends both fields: an empty account name
// with billingEnabled false is how an association is removed.
func (b *Billing) UpdateProjectBillingInfo(ctx context.Context, projectName string, info domain.BillingInfo) error {
	req := &cloudbilling.ProjectBillingInfo{
		BillingAccountName: info.BillingAccountName,
		BillingEnabled:     info.BillingEnabled,
		ForceSendFields:    []string{"BillingAccountName", "BillingEnabled"},
	}
	_, err := b.projects.UpdateBillingInfo(projectName, req).Context(ctx).Do()
	return err
}
