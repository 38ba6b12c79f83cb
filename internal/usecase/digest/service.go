package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/metrics"
)

// Горизонт раздела «Coming Next» в днях, включительно.
const upcomingWindowDays = 7

// Service строит снимок дайджеста за день.
type Service struct {
	updates domain.UpdateRepo
}

var _ domain.DigestService = (*Service)(nil)

// NewService создаёт сервис дайджестов.
func NewService(updates domain.UpdateRepo) *Service {
	return &Service{updates: updates}
}

// BuildForDate строит снимок дайджеста на указанную дату.
// Побочных эффектов нет, ошибки хранилища фатальны для текущей попытки.
func (s *Service) BuildForDate(ctx context.Context, referenceDate time.Time) (domain.Digest, error) {
	start := time.Now()
	dateKey := domain.DateKey(referenceDate)

	released, err := s.updates.ListReleasedOn(ctx, dateKey)
	if err != nil {
		return domain.Digest{}, fmt.Errorf("выборка релизов за день: %w", err)
	}

	toKey := domain.DateKey(referenceDate.UTC().AddDate(0, 0, upcomingWindowDays))
	upcoming, err := s.updates.ListPlannedBetween(ctx, dateKey, toKey)
	if err != nil {
		return domain.Digest{}, fmt.Errorf("выборка запланированных обновлений: %w", err)
	}

	// Порядок закрепляется здесь, а не только в ORDER BY хранилища:
	// релизы — свежие первыми, планы — ближайшие первыми.
	sort.SliceStable(released, func(i, j int) bool {
		ti, tj := releasedAtOf(released[i]), releasedAtOf(released[j])
		return ti.After(tj)
	})
	sort.SliceStable(upcoming, func(i, j int) bool {
		ti, tj := targetDateOf(upcoming[i]), targetDateOf(upcoming[j])
		return ti.Before(tj)
	})

	metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())
	return domain.Digest{DateKey: dateKey, ReleasedToday: released, Upcoming: upcoming}, nil
}

func releasedAtOf(e domain.DigestEntry) time.Time {
	if e.ReleasedAt == nil {
		return time.Time{}
	}
	return *e.ReleasedAt
}

func targetDateOf(e domain.DigestEntry) time.Time {
	if e.TargetDate == nil {
		return time.Time{}
	}
	return *e.TargetDate
}
