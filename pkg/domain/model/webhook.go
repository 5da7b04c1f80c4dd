package model

import "time"

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypeRelease WebhookEventType = "release"
	EventTypeUnknown WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // Event action (e.g. published, deleted)
	Repository string           // Repository full name
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	Release    *ReleaseEvent    // Populated for release events
}

// IsSupportedEvent checks if the event triggers a pipeline run. Only a
// published release does; every other event type and action is ignored.
func (e *WebhookEvent) IsSupportedEvent() bool {
	return e.Type == EventTypeRelease && e.Action == "published" && e.Release != nil
}
