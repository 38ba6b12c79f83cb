package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"kimiaxe-digest-bot/internal/domain"
)

type fakeSender struct {
	name       string
	configured bool
	err        error
	sent       []string
}

func (f *fakeSender) Name() string     { return f.name }
func (f *fakeSender) Configured() bool { return f.configured }
func (f *fakeSender) Send(_ context.Context, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

type stubLogRepo struct {
	entries []domain.PublishLog
	err     error
}

func (s *stubLogRepo) AppendPublishLog(_ context.Context, entry domain.PublishLog) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}
func (s *stubLogRepo) ClaimDailyRun(context.Context, string) (bool, error) { return true, nil }
func (s *stubLogRepo) ReleaseDailyRun(context.Context, string) error       { return nil }
func (s *stubLogRepo) ListPublishLogs(context.Context, string, int) ([]domain.PublishLog, error) {
	return s.entries, nil
}

func TestPublishDigestAggregateOK(t *testing.T) {
	telegram := &fakeSender{name: "telegram", configured: true}
	discord := &fakeSender{name: "discord"}
	twitter := &fakeSender{name: "twitter", configured: true, err: errors.New("status 500")}
	logs := &stubLogRepo{}
	service := NewService([]domain.Sender{telegram, discord, twitter}, logs, zerolog.Nop())

	result, err := service.PublishDigest(context.Background(), "digest body")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if !result.OK {
		t.Fatal("ожидали ok при хотя бы одной доставке")
	}
	if len(result.Channels) != 3 {
		t.Fatalf("ожидали 3 результата каналов, получили %d", len(result.Channels))
	}
	if !result.Channels[0].OK {
		t.Fatal("ожидали успех telegram")
	}
	if !result.Channels[1].Skipped || result.Channels[1].Reason == "" {
		t.Fatalf("ожидали skip для ненастроенного discord: %+v", result.Channels[1])
	}
	if result.Channels[2].Error == "" {
		t.Fatal("ожидали ошибку twitter")
	}
	if len(telegram.sent) != 1 || telegram.sent[0] != "digest body" {
		t.Fatalf("ожидали одну доставку в telegram, получили %v", telegram.sent)
	}
}

func TestPublishDigestAllFailed(t *testing.T) {
	down := &fakeSender{name: "discord", configured: true, err: errors.New("network error")}
	skipped := &fakeSender{name: "twitter"}
	logs := &stubLogRepo{}
	service := NewService([]domain.Sender{skipped, down}, logs, zerolog.Nop())

	result, err := service.PublishDigest(context.Background(), "digest body")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.OK {
		t.Fatal("ожидали ok=false без единой доставки")
	}

	if len(logs.entries) != 1 {
		t.Fatalf("ожидали ровно одну строку аудит-лога, получили %d", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.Channel != domain.LogChannelSocialBot || entry.PostType != domain.PostTypeDailyDigest {
		t.Fatalf("неожиданные теги лога: %s/%s", entry.Channel, entry.PostType)
	}
	if entry.Status != "failed" {
		t.Fatalf("ожидали статус failed, получили %s", entry.Status)
	}
	if entry.ErrorMessage != "discord: network error" {
		t.Fatalf("ожидали ошибку одного канала, получили %q", entry.ErrorMessage)
	}
}

func TestPublishDigestErrorStringJoinsChannels(t *testing.T) {
	first := &fakeSender{name: "telegram", configured: true, err: errors.New("chat not found")}
	second := &fakeSender{name: "discord", configured: true, err: errors.New("status 403")}
	logs := &stubLogRepo{}
	service := NewService([]domain.Sender{first, second}, logs, zerolog.Nop())

	if _, err := service.PublishDigest(context.Background(), "digest body"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	errMsg := logs.entries[0].ErrorMessage
	if errMsg != "telegram: chat not found | discord: status 403" {
		t.Fatalf("ожидали ошибки через ' | ', получили %q", errMsg)
	}
}

func TestPublishDigestPayloadKeepsChannelResults(t *testing.T) {
	sender := &fakeSender{name: "telegram", configured: true}
	logs := &stubLogRepo{}
	service := NewService([]domain.Sender{sender}, logs, zerolog.Nop())

	if _, err := service.PublishDigest(context.Background(), "digest body"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	var payload domain.PublishResult
	if err := json.Unmarshal(logs.entries[0].Payload, &payload); err != nil {
		t.Fatalf("payload должен быть валидным JSON: %v", err)
	}
	if len(payload.Channels) != 1 || payload.Channels[0].Channel != "telegram" {
		t.Fatalf("ожидали результат telegram в payload, получили %+v", payload.Channels)
	}
	if payload.RunID == "" {
		t.Fatal("ожидали run_id в payload")
	}
}

func TestPublishDigestLogWriteFailure(t *testing.T) {
	sender := &fakeSender{name: "telegram", configured: true}
	logs := &stubLogRepo{err: errors.New("store is down")}
	service := NewService([]domain.Sender{sender}, logs, zerolog.Nop())

	result, err := service.PublishDigest(context.Background(), "digest body")
	if err == nil {
		t.Fatal("ожидали ошибку записи аудит-лога")
	}
	if !strings.Contains(err.Error(), "store is down") {
		t.Fatalf("ожидали обёрнутую ошибку хранилища, получили %v", err)
	}
	// Результаты каналов сохраняются даже при сбое лога.
	if !result.OK {
		t.Fatal("ожидали ok по доставленным каналам")
	}
}
