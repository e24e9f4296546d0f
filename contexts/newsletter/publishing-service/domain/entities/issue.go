package entities

import "time"

// Issue is an immutable newsletter issue. It is written once by the publish
// command and read by delivery workers for every queued recipient.
type Issue struct {
	IssueID     string
	Title       string
	TextContent string
	HTMLContent string
	PublishedBy string
	PublishedAt time.Time
}

// DeliveryItem is one pending (issue, recipient) pair in the delivery queue.
// Its existence is the pending state; it is deleted once a worker attempted it.
type DeliveryItem struct {
	IssueID        string
	RecipientEmail string
}

type SubscriberStatus string

const (
	SubscriberStatusConfirmed           SubscriberStatus = "confirmed"
	SubscriberStatusPendingConfirmation SubscriberStatus = "pending_confirmation"
)

type Subscriber struct {
	SubscriberID      string
	Email             string
	Name              string
	Status            SubscriberStatus
	SubscriptionToken string
	SubscribedAt      time.Time
}

// Email is a single outgoing message handed to the email transport.
type Email struct {
	Recipient   string
	Subject     string
	HTMLContent string
	TextContent string
}
