package notifications

import "context"

// Channel names the delivery medium for a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outbound notification. Body is plain text; the provider
// renders it as-is.
type Message struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	From      string  `json:"from,omitempty"`
	Subject   string  `json:"subject,omitempty"`
	Body      string  `json:"body"`
}

// Sender delivers a single message. Implementations retry transient
// provider failures internally; callers treat any returned error as final.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
