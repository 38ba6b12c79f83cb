package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"kimiaxe-digest-bot/internal/adapters/repo"
	"kimiaxe-digest-bot/internal/adapters/social"
	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/cache"
	"kimiaxe-digest-bot/internal/infra/config"
	"kimiaxe-digest-bot/internal/infra/db"
	httpinfra "kimiaxe-digest-bot/internal/infra/http"
	applog "kimiaxe-digest-bot/internal/infra/log"
	"kimiaxe-digest-bot/internal/infra/metrics"
	digestusecase "kimiaxe-digest-bot/internal/usecase/digest"
	"kimiaxe-digest-bot/internal/usecase/publish"
	"kimiaxe-digest-bot/internal/usecase/schedule"
)

const previewCacheTTL = time.Minute

func main() {
	cfg := config.Load()
	log.Logger = applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var previewCache domain.Cache
	if cfg.RedisAddr != "" {
		previewCache = cache.NewRedis(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}))
	}

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("api: не удалось создать Telegram бота")
		}
	}

	senders := []domain.Sender{
		social.NewTelegramSender(botAPI, cfg.Telegram.PrimaryChatID),
		social.NewDiscordSender(cfg.Webhooks.DiscordURL),
		social.NewTwitterSender(cfg.Webhooks.TwitterURL),
	}

	digestService := digestusecase.NewService(repoAdapter)
	publisher := publish.NewService(senders, repoAdapter, log.With().Str("component", "publisher").Logger())
	scheduler, err := schedule.NewService(
		digestService,
		publisher,
		repoAdapter,
		cfg.Digest.ScheduleUTC,
		time.Duration(cfg.Digest.CheckIntervalMS)*time.Millisecond,
		log.With().Str("component", "scheduler").Logger(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("api: некорректное расписание дайджеста")
	}

	server := httpinfra.NewServer(log.With().Str("component", "http").Logger())
	r := server.Router

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	r.Get("/api/updates/sites", func(w http.ResponseWriter, r *http.Request) {
		sites, err := repoAdapter.ListSites(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: список сайтов")
			writeError(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		writeJSON(w, map[string]any{"sites": sites})
	})

	r.Get("/api/updates", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := repoAdapter.ListUpdates(r.Context(), domain.UpdateFilter{
			SiteKey: r.URL.Query().Get("website_key"),
			Status:  r.URL.Query().Get("status"),
			Limit:   limit,
		})
		if err != nil {
			log.Error().Err(err).Msg("api: список обновлений")
			writeError(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		writeJSON(w, map[string]any{"updates": entries})
	})

	r.Get("/api/updates/digest", func(w http.ResponseWriter, r *http.Request) {
		dateKey := domain.DateKey(time.Now())
		if previewCache != nil {
			if cached, err := previewCache.Get("digest:preview:" + dateKey); err == nil && len(cached) > 0 {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(cached)
				return
			}
		}
		snapshot, err := digestService.BuildForDate(r.Context(), time.Now())
		if err != nil {
			log.Error().Err(err).Msg("api: превью дайджеста")
			writeError(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		resp := digestPreviewResponse{Digest: snapshot, Message: digestusecase.FormatDigestMessage(snapshot)}
		body, err := json.Marshal(resp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		if previewCache != nil {
			if err := previewCache.Set("digest:preview:"+dateKey, body, previewCacheTTL); err != nil {
				log.Debug().Err(err).Msg("api: кэш превью недоступен")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.AuthMiddleware(cfg.JWTSecret))

		protected.Post("/api/updates/digest/publish", func(w http.ResponseWriter, r *http.Request) {
			result, err := scheduler.RunDaily(r.Context(), true)
			if err != nil {
				log.Error().Err(err).Msg("api: ручная публикация дайджеста")
				writeError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			writeJSON(w, result)
		})

		protected.Post("/api/updates", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req createUpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.SiteKey == "" || req.Title == "" || req.Summary == "" {
				writeError(w, http.StatusBadRequest, "website_key, title and summary are required.")
				return
			}
			exists, err := repoAdapter.SiteExists(r.Context(), req.SiteKey)
			if err != nil {
				log.Error().Err(err).Msg("api: проверка ключа сайта")
				writeError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			if !exists {
				writeError(w, http.StatusNotFound, "Website key not found in registry.")
				return
			}
			upd := domain.Update{
				SiteKey:    req.SiteKey,
				Title:      req.Title,
				Summary:    req.Summary,
				Details:    req.Details,
				Kind:       defaultString(req.Kind, "feature"),
				Status:     defaultString(req.Status, domain.UpdateStatusPlanned),
				TargetDate: req.TargetDate,
				ReleasedAt: req.ReleasedAt,
			}
			if user, ok := httpinfra.UserFromContext(r.Context()); ok {
				upd.CreatedBy = user.Email
			}
			saved, err := repoAdapter.CreateUpdate(r.Context(), upd)
			if err != nil {
				log.Error().Err(err).Msg("api: создание обновления")
				writeError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"update": saved})
		})

		protected.Patch("/api/updates/{id}", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid update id")
				return
			}
			var req patchUpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			saved, err := repoAdapter.PatchUpdate(r.Context(), id, domain.UpdatePatch{
				Title:      req.Title,
				Summary:    req.Summary,
				Details:    req.Details,
				Kind:       req.Kind,
				Status:     req.Status,
				TargetDate: req.TargetDate,
				ReleasedAt: req.ReleasedAt,
			})
			if errors.Is(err, repo.ErrUpdateNotFound) {
				writeError(w, http.StatusNotFound, "Update not found.")
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("api: частичное обновление записи")
				writeError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			writeJSON(w, map[string]any{"update": saved})
		})
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type digestPreviewResponse struct {
	domain.Digest
	Message string `json:"message"`
}

type createUpdateRequest struct {
	SiteKey    string     `json:"website_key"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Details    string     `json:"details"`
	Kind       string     `json:"update_type"`
	Status     string     `json:"status"`
	TargetDate *time.Time `json:"target_date"`
	ReleasedAt *time.Time `json:"released_at"`
}

type patchUpdateRequest struct {
	Title      *string    `json:"title"`
	Summary    *string    `json:"summary"`
	Details    *string    `json:"details"`
	Kind       *string    `json:"update_type"`
	Status     *string    `json:"status"`
	TargetDate *time.Time `json:"target_date"`
	ReleasedAt *time.Time `json:"released_at"`
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
