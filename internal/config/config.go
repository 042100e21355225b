package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	GatewayConsole  = "console"
	GatewayTelegram = "telegram"
	GatewayTwilio   = "twilio"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Remote kas service
	LedgerBaseURL string
	LedgerTimeout time.Duration

	// Replies
	KasTitle     string
	DashboardURL string
	Timezone     string

	// Messaging gateway
	Gateway           string
	TelegramBotToken  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFrom        string
	TwilioWebhookURL  string
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration

	// Inbound handling
	DedupeTTL          time.Duration
	RateLimitPerMinute int
	TrustedProxies     []string

	// Bearer token for /commands/recent (empty disables the endpoint)
	AdminToken string

	// Audit log (empty path disables it)
	AuditDBPath string

	// AMQP (empty URL disables mutation events)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// LoadEnvFile loads a .env file for local development. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func Load() *Config {
	ledgerURL := getEnv("LEDGER_BASE_URL", "https://kas-badminton.inilanding.biz.id")

	cfg := &Config{
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerBaseURL: strings.TrimRight(ledgerURL, "/"),
		LedgerTimeout: getEnvDuration("LEDGER_TIMEOUT", 10*time.Second),

		KasTitle:     getEnv("KAS_TITLE", "KAS BADMINTON"),
		DashboardURL: getEnv("DASHBOARD_URL", ledgerURL),
		Timezone:     getEnv("TIMEZONE", "Asia/Jakarta"),

		Gateway:           getEnv("GATEWAY", GatewayConsole),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:        getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioWebhookURL:  getEnv("TWILIO_WEBHOOK_URL", ""),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 10*time.Second),
		ReconnectMaxDelay: getEnvDuration("RECONNECT_MAX_DELAY", 5*time.Minute),

		DedupeTTL:          getEnvDuration("DEDUPE_TTL", 10*time.Minute),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		AuditDBPath: getEnv("AUDIT_DB_PATH", "./data/kasbot.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "kas"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "kas.mutation"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LedgerBaseURL == "" {
		errors = append(errors, "ledger base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.LedgerBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger base URL '%s': %v", c.LedgerBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid ledger base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.LedgerTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at least 1 second", c.LedgerTimeout))
	} else if c.LedgerTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be at most 2 minutes", c.LedgerTimeout))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	validGateways := []string{GatewayConsole, GatewayTelegram, GatewayTwilio}
	isValidGateway := false
	for _, g := range validGateways {
		if c.Gateway == g {
			isValidGateway = true
			break
		}
	}
	if !isValidGateway {
		errors = append(errors, fmt.Sprintf("invalid gateway '%s': must be one of %v", c.Gateway, validGateways))
	}

	if c.Gateway == GatewayTelegram && c.TelegramBotToken == "" {
		errors = append(errors, "TELEGRAM_BOT_TOKEN is required when using telegram gateway")
	}

	if c.Gateway == GatewayTwilio {
		if c.TwilioAccountSID == "" {
			errors = append(errors, "TWILIO_ACCOUNT_SID is required when using twilio gateway")
		}
		if c.TwilioAuthToken == "" {
			errors = append(errors, "TWILIO_AUTH_TOKEN is required when using twilio gateway")
		}
		if !strings.HasPrefix(c.TwilioFrom, "whatsapp:") {
			errors = append(errors, fmt.Sprintf("invalid TWILIO_WHATSAPP_FROM '%s': must start with 'whatsapp:'", c.TwilioFrom))
		}
	}

	if c.TwilioWebhookURL != "" {
		if parsedURL, err := url.Parse(c.TwilioWebhookURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid TWILIO_WEBHOOK_URL '%s': %v", c.TwilioWebhookURL, err))
		} else if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid TWILIO_WEBHOOK_URL '%s': must be an absolute http or https URL", c.TwilioWebhookURL))
		}
	}

	if c.ReconnectDelay < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconnect delay %v: must be at least 1 second", c.ReconnectDelay))
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		errors = append(errors, fmt.Sprintf("invalid reconnect max delay %v: must not be below reconnect delay %v", c.ReconnectMaxDelay, c.ReconnectDelay))
	}

	if c.DedupeTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid dedupe TTL %v: must not be negative", c.DedupeTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	} else if c.RateLimitPerMinute > 10000 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at most 10000", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR range", cidr))
		}
	}

	if c.AdminToken != "" && len(c.AdminToken) < 16 {
		errors = append(errors, "ADMIN_TOKEN must be at least 16 characters")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
