package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/metrics"
)

// ErrUpdateNotFound возвращается при частичном обновлении несуществующей записи.
var ErrUpdateNotFound = errors.New("запись об обновлении не найдена")

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UpdateRepo     = (*Postgres)(nil)
	_ domain.SiteRepo       = (*Postgres)(nil)
	_ domain.PublishLogRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateUpdate реализует domain.UpdateRepo.
func (p *Postgres) CreateUpdate(ctx context.Context, upd domain.Update) (domain.Update, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO website_updates (website_key, title, summary, details, update_type, status, target_date, released_at, created_by)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, NULLIF($9,''))
RETURNING id, website_key, title, summary, COALESCE(details,''), update_type, status, target_date, released_at, COALESCE(created_by,''), created_at
`, upd.SiteKey, upd.Title, upd.Summary, upd.Details, upd.Kind, upd.Status, upd.TargetDate, upd.ReleasedAt, upd.CreatedBy)
	saved, err := scanUpdate(row)
	metrics.ObserveNetworkRequest("postgres", "insert", "website_updates", start, err)
	if err != nil {
		return domain.Update{}, fmt.Errorf("вставка обновления: %w", err)
	}
	return saved, nil
}

// PatchUpdate реализует domain.UpdateRepo. Незаполненные поля не меняются.
func (p *Postgres) PatchUpdate(ctx context.Context, id int64, patch domain.UpdatePatch) (domain.Update, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
UPDATE website_updates
   SET title = COALESCE($2, title),
       summary = COALESCE($3, summary),
       details = COALESCE($4, details),
       update_type = COALESCE($5, update_type),
       status = COALESCE($6, status),
       target_date = COALESCE($7, target_date),
       released_at = COALESCE($8, released_at)
 WHERE id = $1
RETURNING id, website_key, title, summary, COALESCE(details,''), update_type, status, target_date, released_at, COALESCE(created_by,''), created_at
`, id, patch.Title, patch.Summary, patch.Details, patch.Kind, patch.Status, patch.TargetDate, patch.ReleasedAt)
	saved, err := scanUpdate(row)
	metrics.ObserveNetworkRequest("postgres", "update", "website_updates", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Update{}, ErrUpdateNotFound
	}
	if err != nil {
		return domain.Update{}, fmt.Errorf("частичное обновление записи: %w", err)
	}
	return saved, nil
}

// ListUpdates реализует domain.UpdateRepo.
func (p *Postgres) ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.DigestEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT wu.id, wu.website_key, wu.title, wu.summary, COALESCE(wu.details,''), wu.update_type, wu.status,
       wu.target_date, wu.released_at, COALESCE(wu.created_by,''), wu.created_at,
       wr.website_name, wr.primary_domain
  FROM website_updates wu
  JOIN website_registry wr ON wr.website_key = wu.website_key
 WHERE ($1 = '' OR wu.website_key = $1)
   AND ($2 = '' OR wu.status = $2)
 ORDER BY COALESCE(wu.released_at, wu.target_date::timestamptz, wu.created_at) DESC
 LIMIT $3
`, filter.SiteKey, filter.Status, limit)
	metrics.ObserveNetworkRequest("postgres", "select", "website_updates", start, err)
	if err != nil {
		return nil, fmt.Errorf("список обновлений: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListReleasedOn реализует domain.UpdateRepo.
func (p *Postgres) ListReleasedOn(ctx context.Context, dateKey string) ([]domain.DigestEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT wu.id, wu.website_key, wu.title, wu.summary, COALESCE(wu.details,''), wu.update_type, wu.status,
       wu.target_date, wu.released_at, COALESCE(wu.created_by,''), wu.created_at,
       wr.website_name, wr.primary_domain
  FROM website_updates wu
  JOIN website_registry wr ON wr.website_key = wu.website_key
 WHERE wu.status = 'released'
   AND wu.released_at::date = $1::date
 ORDER BY wu.released_at DESC
`, dateKey)
	metrics.ObserveNetworkRequest("postgres", "select_released", "website_updates", start, err)
	if err != nil {
		return nil, fmt.Errorf("релизы за день: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListPlannedBetween реализует domain.UpdateRepo. Границы окна включительно.
func (p *Postgres) ListPlannedBetween(ctx context.Context, fromKey, toKey string) ([]domain.DigestEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT wu.id, wu.website_key, wu.title, wu.summary, COALESCE(wu.details,''), wu.update_type, wu.status,
       wu.target_date, wu.released_at, COALESCE(wu.created_by,''), wu.created_at,
       wr.website_name, wr.primary_domain
  FROM website_updates wu
  JOIN website_registry wr ON wr.website_key = wu.website_key
 WHERE wu.status = 'planned'
   AND wu.target_date IS NOT NULL
   AND wu.target_date BETWEEN $1::date AND $2::date
 ORDER BY wu.target_date ASC
`, fromKey, toKey)
	metrics.ObserveNetworkRequest("postgres", "select_planned", "website_updates", start, err)
	if err != nil {
		return nil, fmt.Errorf("запланированные обновления: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListSites реализует domain.SiteRepo.
func (p *Postgres) ListSites(ctx context.Context) ([]domain.Site, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT website_key, website_name, primary_domain, COALESCE(subdomains, '{}'), COALESCE(category,''), COALESCE(status,''), COALESCE(description,'')
  FROM website_registry
 ORDER BY website_name ASC
`)
	metrics.ObserveNetworkRequest("postgres", "select", "website_registry", start, err)
	if err != nil {
		return nil, fmt.Errorf("реестр сайтов: %w", err)
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(&s.Key, &s.Name, &s.PrimaryDomain, &s.Subdomains, &s.Category, &s.Status, &s.Description); err != nil {
			return nil, fmt.Errorf("чтение реестра: %w", err)
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// SiteExists реализует domain.SiteRepo.
func (p *Postgres) SiteExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var found string
	err := p.pool.QueryRow(ctx, `SELECT website_key FROM website_registry WHERE website_key = $1`, key).Scan(&found)
	metrics.ObserveNetworkRequest("postgres", "select_key", "website_registry", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("проверка ключа сайта: %w", err)
	}
	return true, nil
}

// AppendPublishLog реализует domain.PublishLogRepo.
func (p *Postgres) AppendPublishLog(ctx context.Context, entry domain.PublishLog) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO update_publish_logs (channel, post_type, message_body, payload, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6)
`, entry.Channel, entry.PostType, entry.MessageBody, entry.Payload, entry.Status, errMsg)
	metrics.ObserveNetworkRequest("postgres", "insert", "update_publish_logs", start, err)
	if err != nil {
		return fmt.Errorf("вставка строки аудит-лога: %w", err)
	}
	return nil
}

// ClaimDailyRun реализует domain.PublishLogRepo одной атомарной вставкой:
// уникальный индекс по run_date разводит конкурирующие тики и процессы.
func (p *Postgres) ClaimDailyRun(ctx context.Context, dateKey string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO digest_runs (run_date) VALUES ($1::date)
ON CONFLICT (run_date) DO NOTHING
`, dateKey)
	metrics.ObserveNetworkRequest("postgres", "claim", "digest_runs", start, err)
	if err != nil {
		return false, fmt.Errorf("захват запуска: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseDailyRun реализует domain.PublishLogRepo.
func (p *Postgres) ReleaseDailyRun(ctx context.Context, dateKey string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM digest_runs WHERE run_date = $1::date`, dateKey)
	metrics.ObserveNetworkRequest("postgres", "release", "digest_runs", start, err)
	if err != nil {
		return fmt.Errorf("снятие захвата запуска: %w", err)
	}
	return nil
}

// ListPublishLogs реализует domain.PublishLogRepo.
func (p *Postgres) ListPublishLogs(ctx context.Context, dateKey string, limit int) ([]domain.PublishLog, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, channel, post_type, message_body, COALESCE(payload, '{}'), status, COALESCE(error_message,''), published_at
  FROM update_publish_logs
 WHERE published_at::date = $1::date
 ORDER BY published_at DESC
 LIMIT $2
`, dateKey, limit)
	metrics.ObserveNetworkRequest("postgres", "select", "update_publish_logs", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка аудит-лога: %w", err)
	}
	defer rows.Close()

	var entries []domain.PublishLog
	for rows.Next() {
		var e domain.PublishLog
		if err := rows.Scan(&e.ID, &e.Channel, &e.PostType, &e.MessageBody, &e.Payload, &e.Status, &e.ErrorMessage, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("чтение аудит-лога: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanUpdate(row pgx.Row) (domain.Update, error) {
	var u domain.Update
	err := row.Scan(&u.ID, &u.SiteKey, &u.Title, &u.Summary, &u.Details, &u.Kind, &u.Status, &u.TargetDate, &u.ReleasedAt, &u.CreatedBy, &u.CreatedAt)
	if err != nil {
		return domain.Update{}, err
	}
	return u, nil
}

func scanEntries(rows pgx.Rows) ([]domain.DigestEntry, error) {
	var entries []domain.DigestEntry
	for rows.Next() {
		var e domain.DigestEntry
		if err := rows.Scan(&e.ID, &e.SiteKey, &e.Title, &e.Summary, &e.Details, &e.Kind, &e.Status,
			&e.TargetDate, &e.ReleasedAt, &e.CreatedBy, &e.CreatedAt, &e.SiteName, &e.SiteDomain); err != nil {
			return nil, fmt.Errorf("чтение обновления: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
