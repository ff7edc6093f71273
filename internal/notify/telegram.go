package notify

import (
	"context"
	"fmt"

	"tidybeast/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of the bot API the channel needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel pushes the booking summary to the owner's chat.
type TelegramChannel struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegramChannel(bot TelegramSender, chatID int64) *TelegramChannel {
	return &TelegramChannel{bot: bot, chatID: chatID}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, booking *models.ConfirmedBooking) error {
	msg := tgbotapi.NewMessage(c.chatID, Summary(booking))
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
