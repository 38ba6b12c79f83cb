package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/metrics"
	"kimiaxe-digest-bot/internal/usecase/digest"
	"kimiaxe-digest-bot/internal/usecase/publish"
)

// ErrInvalidSchedule возвращается при некорректном времени запуска.
var ErrInvalidSchedule = errors.New("некорректное время запуска, ожидается HH:MM")

// Причины пропуска непринудительного запуска.
const (
	reasonOutsideSchedule = "outside schedule"
	reasonRanInMemory     = "already ran in memory"
	reasonRanInDB         = "already ran in db"
)

// Service запускает ежедневный дайджест по расписанию.
type Service struct {
	digests   domain.DigestService
	publisher *publish.Service
	logs      domain.PublishLogRepo
	log       zerolog.Logger

	hour     int
	minute   int
	interval time.Duration

	// Состояние планировщика живёт только в памяти процесса и сбрасывается
	// при рестарте; между процессами запуск за дату разводит атомарный
	// захват в хранилище.
	mu          sync.Mutex
	lastRunDate string

	now func() time.Time
}

// NewService создаёт планировщик. scheduleUTC задаётся как "HH:MM" в UTC.
func NewService(digests domain.DigestService, publisher *publish.Service, logs domain.PublishLogRepo, scheduleUTC string, interval time.Duration, log zerolog.Logger) (*Service, error) {
	hour, minute, err := parseSchedule(scheduleUTC)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		digests:   digests,
		publisher: publisher,
		logs:      logs,
		log:       log,
		hour:      hour,
		minute:    minute,
		interval:  interval,
		now:       time.Now,
	}, nil
}

// Start крутит цикл проверок до отмены контекста. Ошибки запуска логируются,
// процесс не падает, следующий тик повторяет попытку естественным образом.
func (s *Service) Start(ctx context.Context) {
	s.log.Info().
		Str("schedule_utc", fmt.Sprintf("%02d:%02d", s.hour, s.minute)).
		Dur("interval", s.interval).
		Msg("scheduler: ежедневный дайджест включён")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SchedulerTicksTotal.Inc()
			if _, err := s.RunDaily(ctx, false); err != nil {
				s.log.Error().Err(err).Msg("scheduler: запуск дайджеста не удался")
			}
		}
	}
}

// RunDaily выполняет один проход конвейера дайджеста.
// При force=true проверки расписания и защита от повторов пропускаются.
func (s *Service) RunDaily(ctx context.Context, force bool) (domain.RunResult, error) {
	now := s.now().UTC()
	dateKey := domain.DateKey(now)

	if !force {
		if now.Hour() != s.hour || now.Minute() != s.minute {
			return s.skip(reasonOutsideSchedule), nil
		}
		if s.alreadyRan(dateKey) {
			return s.skip(reasonRanInMemory), nil
		}
		claimed, err := s.logs.ClaimDailyRun(ctx, dateKey)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("захват ежедневного запуска: %w", err)
		}
		if !claimed {
			s.markRan(dateKey)
			return s.skip(reasonRanInDB), nil
		}
	}

	result, err := s.runPipeline(ctx, now, dateKey)
	if err != nil && !force {
		// Захват снимается, чтобы следующий тик мог повторить попытку.
		if relErr := s.logs.ReleaseDailyRun(ctx, dateKey); relErr != nil {
			s.log.Error().Err(relErr).Str("date", dateKey).Msg("scheduler: не удалось снять захват запуска")
		}
	}
	return result, err
}

func (s *Service) runPipeline(ctx context.Context, now time.Time, dateKey string) (domain.RunResult, error) {
	snapshot, err := s.digests.BuildForDate(ctx, now)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("построение дайджеста: %w", err)
	}

	message := digest.FormatDigestMessage(snapshot)
	publishResult, err := s.publisher.PublishDigest(ctx, message)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("публикация дайджеста: %w", err)
	}

	status := "failed"
	if publishResult.OK {
		status = "success"
	}
	payload, err := json.Marshal(publishResult)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("сериализация результата запуска: %w", err)
	}
	if err := s.logs.AppendPublishLog(ctx, domain.PublishLog{
		Channel:     domain.LogChannelDailyJob,
		PostType:    domain.PostTypeDailyDigest,
		MessageBody: message,
		Payload:     payload,
		Status:      status,
	}); err != nil {
		return domain.RunResult{}, fmt.Errorf("запись аудит-лога запуска: %w", err)
	}

	s.markRan(dateKey)
	s.log.Info().
		Str("date", dateKey).
		Str("run_id", publishResult.RunID).
		Bool("ok", publishResult.OK).
		Msg("scheduler: дайджест опубликован")

	return domain.RunResult{Digest: &snapshot, PublishResult: &publishResult}, nil
}

func (s *Service) skip(reason string) domain.RunResult {
	metrics.SchedulerSkipsTotal.WithLabelValues(reason).Inc()
	return domain.RunResult{Skipped: true, Reason: reason}
}

func (s *Service) alreadyRan(dateKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunDate == dateKey
}

func (s *Service) markRan(dateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunDate = dateKey
}

func parseSchedule(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidSchedule
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidSchedule
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidSchedule
	}
	return hour, minute, nil
}
