package alerts

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// botAPI is the slice of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers alerts to a set of Telegram chats.
type TelegramSender struct {
	api     botAPI
	chatIDs []int64
	log     zerolog.Logger
}

// NewTelegramSender authenticates the bot token and returns a sender.
func NewTelegramSender(token string, chatIDs []int64, log zerolog.Logger) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	s := newTelegramSender(api, chatIDs, log)
	s.log.Info().
		Str("bot", api.Self.UserName).
		Int("chats", len(chatIDs)).
		Msg("Telegram alerts enabled")
	return s, nil
}

func newTelegramSender(api botAPI, chatIDs []int64, log zerolog.Logger) *TelegramSender {
	return &TelegramSender{
		api:     api,
		chatIDs: chatIDs,
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

// Send pushes the text to every configured chat. Delivery succeeds when
// at least one chat accepted the message.
func (t *TelegramSender) Send(text string) error {
	if len(t.chatIDs) == 0 {
		return nil
	}

	var lastErr error
	sent := 0
	for _, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := t.api.Send(msg); err != nil {
			t.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Telegram send failed")
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 && lastErr != nil {
		return fmt.Errorf("failed to reach any telegram chat: %w", lastErr)
	}
	return nil
}
