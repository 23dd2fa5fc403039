package events

import (
	"strings"

	"github.com/phishgate/backend/internal/models"
)

// Classify normalizes a free-form upstream status message into an event type.
// Matching is case-insensitive substring search, checked from the deepest
// funnel stage down so that compound messages like "Opened and Clicked"
// resolve to the deeper stage. Anything unrecognized is treated as a
// delivery notification.
func Classify(message string) models.EventType {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "reported"):
		return models.EventReported
	case strings.Contains(m, "submitted"):
		return models.EventSubmittedData
	case strings.Contains(m, "clicked"):
		return models.EventClicked
	case strings.Contains(m, "opened"):
		return models.EventEmailOpened
	default:
		return models.EventEmailSent
	}
}
