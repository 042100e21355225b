// Package telegram runs the bot over the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kasbot/internal/gateway"
	"kasbot/internal/log"
)

const (
	Name = "telegram"

	pollTimeout = 60 // seconds
)

var errNotConnected = errors.New("telegram: not connected")

type Gateway struct {
	token  string
	logger *log.Logger

	mu     sync.Mutex
	api    *tgbotapi.BotAPI
	offset int
}

func New(token string, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Discard()
	}
	return &Gateway{
		token:  token,
		logger: logger.WithComponent(log.ComponentGateway),
	}
}

func (g *Gateway) Name() string { return Name }

// Listen connects (verifying the token with getMe) and relays updates until
// ctx ends. Each call opens a fresh API session; the update offset carries over
// so restarts do not replay handled messages.
func (g *Gateway) Listen(ctx context.Context, h gateway.Handler) error {
	api, err := tgbotapi.NewBotAPI(g.token)
	if err != nil {
		return fmt.Errorf("telegram: connect: %w", err)
	}

	g.mu.Lock()
	g.api = api
	offset := g.offset
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "Telegram bot authorized", "username", api.Self.UserName)

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram: update channel closed")
			}
			g.mu.Lock()
			g.offset = upd.UpdateID + 1
			g.mu.Unlock()

			msg, ok := toMessage(api.Self.UserName, upd)
			if !ok {
				continue
			}
			h(ctx, msg)
		}
	}
}

// Reply answers in the originating chat, quoting the command message.
func (g *Gateway) Reply(_ context.Context, msg gateway.Message, text string) error {
	g.mu.Lock()
	api := g.api
	g.mu.Unlock()
	if api == nil {
		return errNotConnected
	}

	out, err := replyConfig(msg, text)
	if err != nil {
		return err
	}
	if _, err := api.Send(out); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

func replyConfig(msg gateway.Message, text string) (tgbotapi.MessageConfig, error) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: invalid chat id %q: %w", msg.ChatID, err)
	}
	out := tgbotapi.NewMessage(chatID, text)
	if id, err := strconv.Atoi(msg.ID); err == nil {
		out.ReplyToMessageID = id
	}
	return out, nil
}

// toMessage extracts a text message from an update. In groups the bot's
// @mention is stripped so "@kasbot !cekkas" parses like "!cekkas".
func toMessage(botUserName string, upd tgbotapi.Update) (gateway.Message, bool) {
	m := upd.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return gateway.Message{}, false
	}

	text := m.Text
	if (m.Chat.IsGroup() || m.Chat.IsSuperGroup()) && botUserName != "" {
		text = strings.ReplaceAll(text, "@"+botUserName, "")
		text = strings.TrimSpace(text)
	}

	sender := strconv.FormatInt(m.Chat.ID, 10)
	if m.From != nil {
		sender = strconv.FormatInt(m.From.ID, 10)
	}

	return gateway.Message{
		ID:         strconv.Itoa(m.MessageID),
		SenderID:   sender,
		ChatID:     strconv.FormatInt(m.Chat.ID, 10),
		Text:       text,
		ReceivedAt: time.Unix(int64(m.Date), 0),
	}, true
}
