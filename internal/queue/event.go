// Package queue defines message payloads exchanged over the message broker
// and the background consumer that dispatches them.
package queue

// Event kinds published by the catalog and analytics services.
const (
	KindProductCreated = "product.created"
	KindProductUpdated = "product.updated"
	KindDailyReport    = "daily.report"
)

// NotificationEvent is published whenever the core wants an email sent. It
// carries everything the dispatcher needs so consumers never query the
// primary database. Delivery itself is outside the core: the consumer is
// the retrying boundary and the triggering request never waits on it.
type NotificationEvent struct {
	Kind       string   `json:"kind"`
	ProductID  uint64   `json:"product_id,omitempty"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	OccurredAt string   `json:"occurred_at"`
}
