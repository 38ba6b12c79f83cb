package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/metrics"
)

// Таймаут доставки в один канал. Превышение считается ошибкой канала.
const channelTimeout = 10 * time.Second

// Service рассылает дайджест по списку каналов и ведёт аудит-лог.
type Service struct {
	senders []domain.Sender
	logs    domain.PublishLogRepo
	log     zerolog.Logger
}

// NewService создаёт публикатор. Порядок каналов фиксируется при создании.
func NewService(senders []domain.Sender, logs domain.PublishLogRepo, log zerolog.Logger) *Service {
	return &Service{senders: senders, logs: logs, log: log}
}

// PublishDigest доставляет одно и то же сообщение во все каналы независимо.
// Сбой или отсутствие конфигурации одного канала не влияет на остальные;
// повторов и очередей нет. Агрегат OK — «доставлено хотя бы в один канал».
func (s *Service) PublishDigest(ctx context.Context, message string) (domain.PublishResult, error) {
	result := domain.PublishResult{
		RunID:    uuid.NewString(),
		Channels: make([]domain.ChannelResult, 0, len(s.senders)),
	}

	for _, sender := range s.senders {
		result.Channels = append(result.Channels, s.deliver(ctx, sender, message))
	}

	for _, ch := range result.Channels {
		if ch.OK {
			result.OK = true
			break
		}
	}

	if err := s.appendLog(ctx, message, result); err != nil {
		return result, fmt.Errorf("запись аудит-лога публикации: %w", err)
	}
	return result, nil
}

func (s *Service) deliver(ctx context.Context, sender domain.Sender, message string) domain.ChannelResult {
	name := sender.Name()
	if !sender.Configured() {
		s.log.Debug().Str("channel", name).Msg("publish: канал не настроен, пропуск")
		return domain.ChannelResult{Channel: name, Skipped: true, Reason: name + " is not configured"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, channelTimeout)
	defer cancel()

	err := sender.Send(sendCtx, message)
	metrics.IncPublishAttempt(name, err)
	if err != nil {
		s.log.Error().Err(err).Str("channel", name).Msg("publish: доставка не удалась")
		return domain.ChannelResult{Channel: name, Error: err.Error()}
	}
	return domain.ChannelResult{Channel: name, OK: true}
}

func (s *Service) appendLog(ctx context.Context, message string, result domain.PublishResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("сериализация результата: %w", err)
	}

	status := "failed"
	if result.OK {
		status = "success"
	}

	var failures []string
	for _, ch := range result.Channels {
		if ch.Error != "" {
			failures = append(failures, ch.Channel+": "+ch.Error)
		}
	}

	return s.logs.AppendPublishLog(ctx, domain.PublishLog{
		Channel:      domain.LogChannelSocialBot,
		PostType:     domain.PostTypeDailyDigest,
		MessageBody:  message,
		Payload:      payload,
		Status:       status,
		ErrorMessage: strings.Join(failures, " | "),
	})
}
