// Package bot connects the check-in server to a Telegram admin chat: it
// answers a few read-only commands and announces recorded attendance.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"church-checkin/internal/models"
	"church-checkin/internal/repository"
	"church-checkin/internal/services"
)

const commandTimeout = 10 * time.Second

// Sender delivers messages to Telegram
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// IdentityLookup resolves a member code
type IdentityLookup interface {
	Get(ctx context.Context, code string) (*models.Identity, error)
}

type Config struct {
	// AuthorizedChatID receives notifications and may run data commands
	AuthorizedChatID string
	// ServiceStartTime (HH:MM or HH:MM:SS) decides whether an arrival is late
	ServiceStartTime string
	Location         *time.Location
	Logger           *slog.Logger
}

type Bot struct {
	api          *tgbotapi.BotAPI
	sender       Sender
	chatID       int64
	stats        services.StatsProvider
	identities   IdentityLookup
	serviceStart string
	location     *time.Location
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// New connects to the Telegram API with token
func New(token string, stats services.StatsProvider, identities IdentityLookup, cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false

	b, err := newBot(api, stats, identities, cfg)
	if err != nil {
		return nil, err
	}
	b.api = api
	b.logger.Info("authorized on telegram", "account", api.Self.UserName)
	return b, nil
}

func newBot(sender Sender, stats services.StatsProvider, identities IdentityLookup, cfg Config) (*Bot, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	var chatID int64
	if cfg.AuthorizedChatID != "" {
		id, err := strconv.ParseInt(cfg.AuthorizedChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid authorized chat id %q: %w", cfg.AuthorizedChatID, err)
		}
		chatID = id
	}
	return &Bot{
		sender:       sender,
		chatID:       chatID,
		stats:        stats,
		identities:   identities,
		serviceStart: cfg.ServiceStartTime,
		location:     loc,
		logger:       logger.With("component", "bot"),
	}, nil
}

// StartPolling answers commands until ctx is done
func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				b.reply(ctx, update.Message)
			}
		}
	}()
}

// Wait blocks until the polling loop has exited
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) reply(ctx context.Context, message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	msg := tgbotapi.NewMessage(message.Chat.ID, b.handleCommand(ctx, message))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("bot send failed", "chat_id", message.Chat.ID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) string {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		return "⛪ *Church Check-in*\n\n" +
			"*Commands:*\n" +
			"/today - today's attendance\n" +
			"/today YYYY-MM-DD - attendance on a date\n" +
			"/whois <code> - look up a member\n" +
			"/getid - show this chat id"

	case "getid":
		return fmt.Sprintf("Chat ID: `%d`", chatID)

	case "today":
		if !b.authorized(chatID) {
			return "⛔ This chat is not authorized"
		}
		stats, err := b.stats.Stats(ctx, 1, strings.TrimSpace(message.CommandArguments()))
		if errors.Is(err, services.ErrInvalidDate) {
			return "Usage: `/today [YYYY-MM-DD]`"
		}
		if err != nil {
			b.logger.Error("failed to load stats", "error", err)
			return "❌ Failed to load attendance"
		}
		return FormatStats(stats)

	case "whois":
		if !b.authorized(chatID) {
			return "⛔ This chat is not authorized"
		}
		code := strings.TrimSpace(message.CommandArguments())
		if code == "" {
			return "Usage: `/whois <code>`"
		}
		identity, err := b.identities.Get(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return "❌ " + services.MessageNotFound
		}
		if err != nil {
			b.logger.Error("failed to look up identity", "code", code, "error", err)
			return "❌ Lookup failed"
		}
		return FormatIdentity(identity)

	default:
		return "Unknown command, use /start"
	}
}

func (b *Bot) authorized(chatID int64) bool {
	return b.chatID != 0 && chatID == b.chatID
}

// SendNotification sends message to the admin chat
func (b *Bot) SendNotification(message string) {
	if b.chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(b.chatID, message)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("failed to send notification", "error", err)
	}
}
