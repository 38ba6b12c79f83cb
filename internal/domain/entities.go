package domain

import "time"

// Статусы записи об обновлении.
const (
	UpdateStatusPlanned  = "planned"
	UpdateStatusReleased = "released"
)

// Теги аудит-лога публикаций.
const (
	LogChannelDailyJob  = "daily-job"
	LogChannelSocialBot = "social-bot"
	PostTypeDailyDigest = "daily-digest"
)

// Update описывает одно обновление продукта из реестра сайтов.
type Update struct {
	ID         int64      `json:"id"`
	SiteKey    string     `json:"website_key"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Details    string     `json:"details,omitempty"`
	Kind       string     `json:"update_type"`
	Status     string     `json:"status"`
	TargetDate *time.Time `json:"target_date,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UpdatePatch содержит частичное обновление полей записи. nil означает «не менять».
type UpdatePatch struct {
	Title      *string
	Summary    *string
	Details    *string
	Kind       *string
	Status     *string
	TargetDate *time.Time
	ReleasedAt *time.Time
}

// Site описывает запись реестра сайтов. Справочные данные, только чтение.
type Site struct {
	Key           string   `json:"website_key"`
	Name          string   `json:"website_name"`
	PrimaryDomain string   `json:"primary_domain"`
	Subdomains    []string `json:"subdomains,omitempty"`
	Category      string   `json:"category,omitempty"`
	Status        string   `json:"status,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// DigestEntry объединяет обновление с данными реестра сайтов.
type DigestEntry struct {
	Update
	SiteName   string `json:"website_name"`
	SiteDomain string `json:"primary_domain"`
}

// Digest — снимок дайджеста за день. Строится заново при каждом вычислении.
type Digest struct {
	DateKey       string        `json:"dateKey"`
	ReleasedToday []DigestEntry `json:"releasedToday"`
	Upcoming      []DigestEntry `json:"upcoming"`
}

// ChannelResult — результат доставки в один канал.
type ChannelResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PublishResult — агрегированный результат веерной публикации.
// OK истинно, если доставка удалась хотя бы в один канал.
type PublishResult struct {
	OK       bool            `json:"ok"`
	RunID    string          `json:"run_id,omitempty"`
	Channels []ChannelResult `json:"channels"`
}

// PublishLog — одна строка аудит-лога публикаций. Только добавление.
type PublishLog struct {
	ID           int64     `json:"id"`
	Channel      string    `json:"channel"`
	PostType     string    `json:"post_type"`
	MessageBody  string    `json:"message_body"`
	Payload      []byte    `json:"payload,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

// RunResult — итог одного запуска ежедневного дайджеста.
type RunResult struct {
	Skipped       bool           `json:"skipped"`
	Reason        string         `json:"reason,omitempty"`
	Digest        *Digest        `json:"digest,omitempty"`
	PublishResult *PublishResult `json:"publishResult,omitempty"`
}

// DateKey нормализует момент времени к календарной дате в UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
