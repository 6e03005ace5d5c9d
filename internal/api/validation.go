package api

import (
	"mime"

	"github.com/djlord-it/billing-cron/internal/payload"
)

// isJSON accepts application/json with optional parameters such as charset.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == payload.ContentType
}
