package providers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"airalert-service/internal/config"
	"airalert-service/internal/contacts"
)

// telegramRatePerSecond bounds outbound Telegram calls; the bot API
// throttles around 30 messages per second globally.
const telegramRatePerSecond = 20

var (
	telegramLimiter *rate.Limiter
	telegramBot     *bot.Bot
	telegramOnce    sync.Once
	telegramInitErr error
)

// initTelegram builds the shared bot client and rate limiter.
func initTelegram(token string) {
	telegramOnce.Do(func() {
		telegramLimiter = rate.NewLimiter(rate.Limit(telegramRatePerSecond), telegramRatePerSecond)
		telegramBot, telegramInitErr = bot.New(token, bot.WithSkipGetMe())
	})
}

// SendTelegram delivers one message body to the contact's chat id.
func SendTelegram(ctx context.Context, cfg config.Config, contact contacts.Contact, body string) (time.Time, error) {
	if cfg.Telegram.BotToken == "" {
		return time.Time{}, fmt.Errorf("missing Telegram configuration: bot token is empty")
	}

	chatID, err := strconv.ParseInt(contact.Address, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid chat id %q for user %d: %w", contact.Address, contact.RecordID, err)
	}

	initTelegram(cfg.Telegram.BotToken)
	if telegramInitErr != nil {
		return time.Time{}, fmt.Errorf("failed to init telegram bot: %w", telegramInitErr)
	}

	if err := telegramLimiter.Wait(ctx); err != nil {
		return time.Time{}, fmt.Errorf("telegram rate limit wait: %w", err)
	}

	_, err = telegramBot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   body,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to send telegram message to user %d: %w", contact.RecordID, err)
	}
	return time.Now(), nil
}
