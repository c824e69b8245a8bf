package domain

import (
	"fmt"
	"strings"
)

// NotificationPolicy decides whether a failed notification fails the request.
type NotificationPolicy string

const (
	// PolicyBestEffort keeps the success response once the submission is stored.
	PolicyBestEffort NotificationPolicy = "best-effort"
	// PolicyStrict reports failure when the owner could not be notified.
	PolicyStrict NotificationPolicy = "strict"
)

// ParseNotificationPolicy accepts "best-effort" (or "best_effort") and "strict".
func ParseNotificationPolicy(raw string) (NotificationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "best-effort", "best_effort", "besteffort":
		return PolicyBestEffort, nil
	case "strict":
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown notification policy %q", raw)
}
