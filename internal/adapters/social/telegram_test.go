package social

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegramAPI struct {
	sent []string
	err  error
}

func (f *fakeTelegramAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramSenderUnconfiguredWithoutBot(t *testing.T) {
	// Токен не задан, но чат указан: канал должен молча пропускаться,
	// а не падать при отправке.
	var botAPI *tgbotapi.BotAPI
	sender := NewTelegramSender(botAPI, 123)
	if sender.Configured() {
		t.Fatal("канал без бота должен считаться ненастроенным")
	}
}

func TestTelegramSenderUnconfiguredWithoutChat(t *testing.T) {
	sender := NewTelegramSender(&tgbotapi.BotAPI{}, 0)
	if sender.Configured() {
		t.Fatal("канал без чата должен считаться ненастроенным")
	}
}

func TestTelegramSenderSendsMessage(t *testing.T) {
	fake := &fakeTelegramAPI{}
	sender := &TelegramSender{bot: fake, chatID: 42}
	if !sender.Configured() {
		t.Fatal("ожидали настроенный канал")
	}
	if err := sender.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(fake.sent) != 1 || fake.sent[0] != "hello" {
		t.Fatalf("ожидали одну отправку, получили %v", fake.sent)
	}
}
