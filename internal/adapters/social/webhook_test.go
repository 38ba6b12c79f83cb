package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookSenderPostsJSONField(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("ожидали JSON тело: %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("ожидали application/json, получили %s", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewDiscordSender(server.URL)
	if !sender.Configured() {
		t.Fatal("ожидали настроенный канал")
	}
	if err := sender.Send(context.Background(), "digest body"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if body["content"] != "digest body" {
		t.Fatalf("ожидали поле content, получили %v", body)
	}
}

func TestWebhookSenderTwitterField(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
	}))
	defer server.Close()

	sender := NewTwitterSender(server.URL)
	if err := sender.Send(context.Background(), "digest body"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if body["text"] != "digest body" {
		t.Fatalf("ожидали поле text, получили %v", body)
	}
}

func TestWebhookSenderNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	sender := NewDiscordSender(server.URL)
	err := sender.Send(context.Background(), "digest body")
	if err == nil {
		t.Fatal("ожидали ошибку для статуса 500")
	}
	if !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("ожидали статус и тело в ошибке, получили %v", err)
	}
}

func TestWebhookSenderUnconfigured(t *testing.T) {
	sender := NewTwitterSender("")
	if sender.Configured() {
		t.Fatal("пустой endpoint не должен считаться настроенным")
	}
}
