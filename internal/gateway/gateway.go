// Package gateway defines the messaging transport capability the bot runs on.
package gateway

import (
	"context"
	"errors"
	"time"
)

type (
	// Message is one inbound chat message.
	Message struct {
		ID         string
		SenderID   string
		ChatID     string
		Text       string
		ReceivedAt time.Time
	}

	// Handler is invoked once per inbound message. Gateways call it from a
	// single goroutine so messages are handled one at a time.
	Handler func(ctx context.Context, msg Message)

	Gateway interface {
		// Name identifies the transport in logs and the audit trail.
		Name() string
		// Listen delivers inbound messages to h until ctx is cancelled or the
		// transport fails.
		Listen(ctx context.Context, h Handler) error
		// Reply sends text back to the chat msg came from.
		Reply(ctx context.Context, msg Message, text string) error
	}
)

// ErrClosed is returned by Listen when the transport ended for good and
// restarting it is pointless (for example stdin reached EOF).
var ErrClosed = errors.New("gateway closed")
