package backend

import (
	"context"
	"io"
	"net/http"

	"kasbot/internal/gateway"
)

// CleanupFunc releases resources held by a gateway.
type CleanupFunc func() error

// Result contains the gateway instance plus the webhook it needs mounted, if any.
type Result struct {
	Gateway gateway.Gateway
	// Webhook is nil for gateways that pull their messages.
	Webhook     http.Handler
	WebhookPath string
	Cleanup     CleanupFunc
}

// Factory creates gateways based on configuration
type Factory interface {
	CreateGateway(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for gateway creation
type Config struct {
	Type GatewayType

	// Console specific
	ConsoleIn  io.Reader
	ConsoleOut io.Writer

	// Telegram specific
	TelegramBotToken string

	// Twilio specific
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioAPIBase    string
	TwilioWebhookURL string
}

// GatewayType represents the messaging transport
type GatewayType string

const (
	ConsoleGateway  GatewayType = "console"
	TelegramGateway GatewayType = "telegram"
	TwilioGateway   GatewayType = "twilio"
)

// String implements fmt.Stringer
func (gt GatewayType) String() string {
	return string(gt)
}

// IsValid returns true if the gateway type is known
func (gt GatewayType) IsValid() bool {
	switch gt {
	case ConsoleGateway, TelegramGateway, TwilioGateway:
		return true
	default:
		return false
	}
}
