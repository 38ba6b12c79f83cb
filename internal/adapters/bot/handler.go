package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"kimiaxe-digest-bot/internal/adapters/social"
	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/usecase/digest"
	"kimiaxe-digest-bot/internal/usecase/schedule"
)

const statusRowsLimit = 20

// Handler обслуживает операторские команды бота.
type Handler struct {
	bot       social.TelegramAPI
	log       zerolog.Logger
	digests   domain.DigestService
	scheduler *schedule.Service
	logs      domain.PublishLogRepo
	admins    map[int64]struct{}
	now       func() time.Time
}

// NewHandler создаёт обработчик. adminIDs — белый список операторов.
func NewHandler(bot social.TelegramAPI, log zerolog.Logger, digests domain.DigestService, scheduler *schedule.Service, logs domain.PublishLogRepo, adminIDs []int64) *Handler {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Handler{
		bot:       bot,
		log:       log,
		digests:   digests,
		scheduler: scheduler,
		logs:      logs,
		admins:    admins,
		now:       time.Now,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, "KimiAxe digest bot. Use /help to see available commands.")
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage())
	case strings.HasPrefix(text, "/digest"):
		h.handleDigestPreview(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/publish_now"):
		h.handlePublishNow(ctx, msg)
	case strings.HasPrefix(text, "/status"):
		h.handleStatus(ctx, msg)
	default:
		h.reply(msg.Chat.ID, "Unknown command. Use /help")
	}
}

func (h *Handler) handleDigestPreview(ctx context.Context, chatID int64) {
	snapshot, err := h.digests.BuildForDate(ctx, h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("bot: построение превью дайджеста")
		h.reply(chatID, "Failed to build the digest preview.")
		return
	}
	for _, chunk := range social.SplitMessage(digest.FormatDigestMessage(snapshot)) {
		h.reply(chatID, chunk)
	}
}

func (h *Handler) handlePublishNow(ctx context.Context, msg *tgbotapi.Message) {
	if !h.isOperator(msg) {
		h.reply(msg.Chat.ID, "Not authorized.")
		return
	}
	result, err := h.scheduler.RunDaily(ctx, true)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: принудительная публикация не удалась")
		h.reply(msg.Chat.ID, "Digest publish failed: "+err.Error())
		return
	}
	if result.PublishResult != nil && result.PublishResult.OK {
		h.reply(msg.Chat.ID, fmt.Sprintf("Digest published to %d channel(s).", countOK(result.PublishResult.Channels)))
		return
	}
	h.reply(msg.Chat.ID, "Digest run finished, but no channel accepted the message.")
}

func (h *Handler) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	if !h.isOperator(msg) {
		h.reply(msg.Chat.ID, "Not authorized.")
		return
	}
	dateKey := domain.DateKey(h.now())
	entries, err := h.logs.ListPublishLogs(ctx, dateKey, statusRowsLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: выборка аудит-лога")
		h.reply(msg.Chat.ID, "Failed to read the publish log.")
		return
	}
	if len(entries) == 0 {
		h.reply(msg.Chat.ID, "No publish attempts today ("+dateKey+").")
		return
	}
	var b strings.Builder
	b.WriteString("Publish log for " + dateKey + ":\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s — %s/%s: %s\n", e.PublishedAt.UTC().Format("15:04:05"), e.Channel, e.PostType, e.Status)
	}
	h.reply(msg.Chat.ID, strings.TrimSpace(b.String()))
}

func (h *Handler) buildHelpMessage() string {
	return strings.Join([]string{
		"Available commands:",
		"/digest - preview today's digest",
		"/publish_now - force-publish the daily digest (operators only)",
		"/status - today's publish log (operators only)",
	}, "\n")
}

func (h *Handler) isOperator(msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	_, ok := h.admins[msg.From.ID]
	return ok
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: ответ не отправлен")
	}
}

func countOK(channels []domain.ChannelResult) int {
	n := 0
	for _, ch := range channels {
		if ch.OK {
			n++
		}
	}
	return n
}
