// Package twilio connects the bot to WhatsApp through Twilio.
//
// Inbound messages arrive on a webhook and are queued; Listen drains the
// queue one message at a time. Replies go out through the Messages REST API.
package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"kasbot/internal/gateway"
	"kasbot/internal/log"
)

const (
	Name = "twilio"

	DefaultAPIBase = "https://api.twilio.com"
	WebhookPath    = "/webhook/twilio"

	SignatureHeader = "X-Twilio-Signature"

	whatsappPrefix = "whatsapp:"
	queueSize      = 64
	emptyTwiML     = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

type Config struct {
	AccountSID string
	AuthToken  string
	// From is the sender number, with or without the "whatsapp:" prefix.
	From string
	// WebhookURL is the public URL configured in the Twilio console. Request
	// signatures are computed over it, so it must match exactly. When empty
	// it is rebuilt from the request and its forwarding headers.
	WebhookURL string
	APIBase    string
	HTTPClient *http.Client
}

type Gateway struct {
	cfg    Config
	client *http.Client
	queue  chan gateway.Message
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) *Gateway {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.From = withPrefix(cfg.From)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Gateway{
		cfg:    cfg,
		client: client,
		queue:  make(chan gateway.Message, queueSize),
		logger: logger.WithComponent(log.ComponentGateway),
	}
}

func (g *Gateway) Name() string { return Name }

// Listen hands queued webhook messages to h until ctx ends.
func (g *Gateway) Listen(ctx context.Context, h gateway.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-g.queue:
			h(ctx, msg)
		}
	}
}

// Webhook accepts Twilio's inbound message callback. Requests without a valid
// X-Twilio-Signature are refused with 403. The reply is sent asynchronously,
// so the response is always an empty TwiML document.
func (g *Gateway) Webhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		if !g.validSignature(r) {
			g.logger.WarnContext(r.Context(), "Rejected webhook with invalid signature",
				log.FieldPath, r.URL.Path,
				log.FieldErrorType, log.ErrorTypeValidation)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		msg, err := toMessage(r.PostForm, time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		select {
		case g.queue <- msg:
		default:
			g.logger.WarnContext(r.Context(), "Inbound queue full, dropping message",
				log.FieldMessageID, msg.ID)
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, emptyTwiML)
	})
}

// Reply sends text to the chat the message came from.
func (g *Gateway) Reply(ctx context.Context, msg gateway.Message, text string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.cfg.APIBase, g.cfg.AccountSID)

	form := url.Values{}
	form.Set("From", g.cfg.From)
	form.Set("To", withPrefix(msg.ChatID))
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("twilio: send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (g *Gateway) validSignature(r *http.Request) bool {
	got := r.Header.Get(SignatureHeader)
	if got == "" || g.cfg.AuthToken == "" {
		return false
	}
	want := signature(g.cfg.AuthToken, g.webhookURL(r), r.PostForm)
	return hmac.Equal([]byte(got), []byte(want))
}

func (g *Gateway) webhookURL(r *http.Request) string {
	if g.cfg.WebhookURL != "" {
		return g.cfg.WebhookURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// signature is Twilio's request signature: base64 HMAC-SHA1, keyed with the
// auth token, over the URL followed by every POST parameter name and value
// in name order.
func signature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), form[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func toMessage(form url.Values, now time.Time) (gateway.Message, error) {
	sid := form.Get("MessageSid")
	from := form.Get("From")
	if sid == "" || from == "" {
		return gateway.Message{}, errors.New("missing MessageSid or From")
	}
	return gateway.Message{
		ID:         sid,
		SenderID:   strings.TrimPrefix(from, whatsappPrefix),
		ChatID:     from,
		Text:       strings.TrimSpace(form.Get("Body")),
		ReceivedAt: now,
	}, nil
}

func withPrefix(number string) string {
	if number == "" || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
