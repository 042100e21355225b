package backend

import (
	"fmt"
	"os"
	"strings"

	"kasbot/internal/config"
)

// FromAppConfig converts the application config to gateway config.
// Console gateways read stdin and write stdout.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	gatewayType := GatewayType(appConfig.Gateway)
	if !gatewayType.IsValid() {
		return Config{}, fmt.Errorf("invalid gateway type in config: %s (must be one of %s)", appConfig.Gateway, strings.Join(GetGatewayTypeStrings(), ", "))
	}

	return Config{
		Type: gatewayType,

		ConsoleIn:  os.Stdin,
		ConsoleOut: os.Stdout,

		TelegramBotToken: appConfig.TelegramBotToken,

		TwilioAccountSID: appConfig.TwilioAccountSID,
		TwilioAuthToken:  appConfig.TwilioAuthToken,
		TwilioFrom:       appConfig.TwilioFrom,
		TwilioWebhookURL: appConfig.TwilioWebhookURL,
	}, nil
}

// Validate validates the gateway configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid gateway type: %s (must be one of %s)", c.Type, strings.Join(GetGatewayTypeStrings(), ", "))
	}

	switch c.Type {
	case ConsoleGateway:
		if c.ConsoleIn == nil || c.ConsoleOut == nil {
			return fmt.Errorf("console gateway needs both an input and an output stream")
		}

	case TelegramGateway:
		if c.TelegramBotToken == "" {
			return fmt.Errorf("Telegram bot token is required for telegram gateway")
		}

	case TwilioGateway:
		if c.TwilioAccountSID == "" {
			return fmt.Errorf("Twilio account SID is required for twilio gateway")
		}
		if c.TwilioAuthToken == "" {
			return fmt.Errorf("Twilio auth token is required for twilio gateway")
		}
		if c.TwilioFrom == "" {
			return fmt.Errorf("Twilio sender number is required for twilio gateway")
		}
	}

	return nil
}

// GetGatewayTypes returns all valid gateway types
func GetGatewayTypes() []GatewayType {
	return []GatewayType{ConsoleGateway, TelegramGateway, TwilioGateway}
}

// GetGatewayTypeStrings returns all valid gateway type strings
func GetGatewayTypeStrings() []string {
	types := GetGatewayTypes()
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}
	return strs
}
