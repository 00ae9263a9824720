// Package email delivers transactional mail: address verification and
// password recovery links.
package email

import (
	"context"
	"errors"
	"time"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("email has no recipient")

// Message is one outbound transactional email.
type Message struct {
	To      string
	From    string // overrides the sender default when set
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	// Tag names the mail kind ("verification", "recovery") for logs.
	Tag string
}

// Receipt is the provider's acknowledgement.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
