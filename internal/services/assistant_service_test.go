package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mindnest/MindNestBack/internal/models"
)

func TestAssistantCompleteSendsRecentHistory(t *testing.T) {
	var captured completionRequest
	var apiKey, version string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "take a slow breath"}},
		})
	}))
	defer server.Close()

	service := NewAssistantService(server.URL, "test-key", "claude-3-haiku-20240307")

	history := make([]models.Message, 0, 12)
	for i := 0; i < 12; i++ {
		sender := models.RoleUser
		if i%2 == 1 {
			sender = models.RoleTherapist
		}
		history = append(history, models.Message{Text: "turn", Sender: sender, Timestamp: int64(i)})
	}

	reply, err := service.Complete(context.Background(), history)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "take a slow breath" {
		t.Fatalf("reply %q", reply)
	}

	if apiKey != "test-key" {
		t.Fatalf("x-api-key %q", apiKey)
	}
	if version != "2023-06-01" {
		t.Fatalf("anthropic-version %q", version)
	}
	if captured.Model != "claude-3-haiku-20240307" {
		t.Fatalf("model %q", captured.Model)
	}
	if captured.MaxTokens != assistantMaxTokens {
		t.Fatalf("max_tokens %d", captured.MaxTokens)
	}
	if len(captured.Messages) != assistantHistoryLimit {
		t.Fatalf("expected history trimmed to %d turns, got %d", assistantHistoryLimit, len(captured.Messages))
	}
	if captured.Messages[0].Role != "user" || captured.Messages[1].Role != "assistant" {
		t.Fatalf("role mapping wrong: %q, %q", captured.Messages[0].Role, captured.Messages[1].Role)
	}
	if captured.System == "" {
		t.Fatal("expected system prompt")
	}
}

func TestAssistantCompleteEmptyHistory(t *testing.T) {
	service := NewAssistantService("http://unused", "k", "m")
	if _, err := service.Complete(context.Background(), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAssistantCompleteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	service := NewAssistantService(server.URL, "k", "m")
	_, err := service.Complete(context.Background(), []models.Message{{Text: "hi", Sender: models.RoleUser}})
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestAssistantCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	service := NewAssistantService(server.URL, "k", "m")
	_, err := service.Complete(context.Background(), []models.Message{{Text: "hi", Sender: models.RoleUser}})
	if err == nil {
		t.Fatal("expected error on empty content")
	}
}
