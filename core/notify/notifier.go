// Package notify defines the notification collaborator interface. Delivery
// is fire-and-forget: a booking remains valid even when its notification
// fails.
package notify

import "context"

// Notification types understood by downstream consumers.
const (
	TypeBookingConfirmation = "booking_confirmation"
	TypeReminder            = "reminder"
	TypeCompletion          = "completion"
)

// Event is the payload published for a booking notification.
type Event struct {
	BookingID string `json:"booking_id"`
	Type      string `json:"type"`
	Recipient string `json:"recipient,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

// Notifier delivers booking notifications. Implementations must never block
// the scheduling decision: errors are reported back for logging only.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
