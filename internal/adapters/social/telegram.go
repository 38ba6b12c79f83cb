package social

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kimiaxe-digest-bot/internal/infra/metrics"
)

// TelegramAPI — минимальная поверхность бота, нужная для рассылки.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender публикует дайджест в основной чат через бота.
type TelegramSender struct {
	bot    TelegramAPI
	chatID int64
}

// NewTelegramSender создаёт канал рассылки. bot == nil или chatID == 0
// означает, что канал не настроен. Принимает конкретный тип: нулевой
// указатель внутри интерфейса перестаёт сравниваться с nil.
func NewTelegramSender(bot *tgbotapi.BotAPI, chatID int64) *TelegramSender {
	s := &TelegramSender{chatID: chatID}
	if bot != nil {
		s.bot = bot
	}
	return s
}

// Name реализует domain.Sender.
func (s *TelegramSender) Name() string { return "telegram" }

// Configured реализует domain.Sender.
func (s *TelegramSender) Configured() bool { return s.bot != nil && s.chatID != 0 }

// Send отправляет сообщение, разбивая его по лимиту Telegram.
func (s *TelegramSender) Send(ctx context.Context, message string) error {
	for _, chunk := range SplitMessage(message) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(s.chatID, chunk)
		start := time.Now()
		_, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", "primary_chat", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return fmt.Errorf("отправка в чат %d: %w", s.chatID, err)
		}
	}
	return nil
}
