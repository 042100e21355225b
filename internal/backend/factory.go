package backend

import (
	"context"
	"fmt"

	"kasbot/internal/gateway/console"
	"kasbot/internal/gateway/telegram"
	"kasbot/internal/gateway/twilio"
	"kasbot/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new gateway factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentGateway),
	}
}

// CreateGateway implements Factory.CreateGateway
func (f *DefaultFactory) CreateGateway(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case ConsoleGateway:
		return f.createConsoleGateway(ctx, config)
	case TelegramGateway:
		return f.createTelegramGateway(ctx, config)
	case TwilioGateway:
		return f.createTwilioGateway(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", config.Type)
	}
}

func (f *DefaultFactory) createConsoleGateway(ctx context.Context, config Config) (*Result, error) {
	gw := console.New(config.ConsoleIn, config.ConsoleOut)

	f.logger.InfoContext(ctx, "Initialized console gateway")

	return &Result{Gateway: gw}, nil
}

func (f *DefaultFactory) createTelegramGateway(ctx context.Context, config Config) (*Result, error) {
	gw := telegram.New(config.TelegramBotToken, f.logger)

	f.logger.InfoContext(ctx, "Initialized Telegram gateway")

	return &Result{Gateway: gw}, nil
}

func (f *DefaultFactory) createTwilioGateway(ctx context.Context, config Config) (*Result, error) {
	gw := twilio.New(twilio.Config{
		AccountSID: config.TwilioAccountSID,
		AuthToken:  config.TwilioAuthToken,
		From:       config.TwilioFrom,
		APIBase:    config.TwilioAPIBase,
		WebhookURL: config.TwilioWebhookURL,
	}, f.logger)

	f.logger.InfoContext(ctx, "Initialized Twilio gateway", "webhook_path", twilio.WebhookPath)

	return &Result{
		Gateway:     gw,
		Webhook:     gw.Webhook(),
		WebhookPath: twilio.WebhookPath,
	}, nil
}
