package events

import (
	"context"
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// EventType labels a domain event emitted after a successful mutation.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription.created"
	EventSubscriptionActivated   EventType = "subscription.activated"
	EventSubscriptionCancelled   EventType = "subscription.cancelled"
	EventSubscriptionSuspended   EventType = "subscription.suspended"
	EventSubscriptionResumed     EventType = "subscription.resumed"
	EventSubscriptionBilled      EventType = "subscription.billed"
	EventSubscriptionTierChanged EventType = "subscription.tier_changed"
	EventBillingCycleChanged     EventType = "subscription.billing_cycle_changed"
)

// Event describes one committed subscription change.
type Event struct {
	SubscriptionID string            `json:"subscription_id"`
	UserID         string            `json:"user_id"`
	Type           EventType         `json:"type"`
	Timestamp      time.Time         `json:"timestamp"`
	CorrelationID  string            `json:"correlation_id"`
	Tier           types.Tier        `json:"tier"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Publisher is the event sink consumed by the engine. Publish failures are
// reported so the caller can log them; they never invalidate a committed
// mutation.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
