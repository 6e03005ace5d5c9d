package gcp

import (
	"context"
	"errors"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudscheduler/v1"
)

// ProjectResolver finds the project this process runs as.
type ProjectResolver struct {
	configured string
	lookupEnv  func(string) string
	findCreds  func(ctx context.Context) (*google.Credentials, error)
}

// NewProjectResolver prefers configured, then the gcloud project override,
// then the project bound to Application Default Credentials.
func NewProjectResolver(configured string) *ProjectResolver {
	return &ProjectResolver{
		configured: configured,
		lookupEnv:  os.Getenv,
		findCreds: func(ctx context.Context) (*google.Credentials, error) {
			return google.FindDefaultCredentials(ctx, cloudscheduler.CloudPlatformScope)
		},
	}
}

func (p *ProjectResolver) ProjectID(ctx context.Context) (string, error) {
	if id := strings.TrimSpace(p.configured); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(p.lookupEnv("CLOUDSDK_CORE_PROJECT")); id != "" {
		return id, nil
	}
	creds, err := p.findCreds(ctx)
	if err != nil {
		return "", err
	}
	if creds.ProjectID == "" {
		return "", errors.New("default credentials carry no project id")
	}
	return creds.ProjectID, nil
}
