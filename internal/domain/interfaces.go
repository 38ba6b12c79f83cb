package domain

import (
	"context"
	"time"
)

// UpdateFilter задаёт фильтры списка обновлений.
type UpdateFilter struct {
	SiteKey string
	Status  string
	Limit   int
}

// UpdateRepo управляет записями об обновлениях.
type UpdateRepo interface {
	CreateUpdate(ctx context.Context, upd Update) (Update, error)
	PatchUpdate(ctx context.Context, id int64, patch UpdatePatch) (Update, error)
	ListUpdates(ctx context.Context, filter UpdateFilter) ([]DigestEntry, error)
	ListReleasedOn(ctx context.Context, dateKey string) ([]DigestEntry, error)
	ListPlannedBetween(ctx context.Context, fromKey, toKey string) ([]DigestEntry, error)
}

// SiteRepo читает реестр сайтов.
type SiteRepo interface {
	ListSites(ctx context.Context) ([]Site, error)
	SiteExists(ctx context.Context, key string) (bool, error)
}

// PublishLogRepo ведёт аудит-лог публикаций и захват ежедневного запуска.
type PublishLogRepo interface {
	AppendPublishLog(ctx context.Context, entry PublishLog) error
	// ClaimDailyRun атомарно захватывает запуск за дату. Возвращает false,
	// если запуск за эту дату уже захвачен.
	ClaimDailyRun(ctx context.Context, dateKey string) (bool, error)
	// ReleaseDailyRun снимает захват после провала конвейера, чтобы
	// следующий тик мог повторить попытку.
	ReleaseDailyRun(ctx context.Context, dateKey string) error
	ListPublishLogs(ctx context.Context, dateKey string, limit int) ([]PublishLog, error)
}

// Sender доставляет сообщение в один внешний канал.
type Sender interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, message string) error
}

// DigestService строит снимок дайджеста за день.
type DigestService interface {
	BuildForDate(ctx context.Context, referenceDate time.Time) (Digest, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
