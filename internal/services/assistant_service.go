package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mindnest/MindNestBack/internal/models"
)

const (
	assistantHistoryLimit = 10
	assistantMaxTokens    = 300

	assistantSystemPrompt = "You are a helpful mental health assistant that provides supportive, " +
		"empathetic responses. You're part of a mental health app and should help users with " +
		"emotional support, stress management tips, and general mental wellness advice. Never " +
		"diagnose medical conditions or replace professional help. Always encourage seeking " +
		"professional help for serious issues. Keep responses supportive, practical, and concise."
)

// AssistantService calls the chat completion provider for the AI-assistant
// screens. Transcripts reuse the Message record; this service is independent
// of the therapist messaging core.
type AssistantService struct {
	client *http.Client
	apiURL string
	apiKey string
	model  string
}

func NewAssistantService(apiURL, apiKey, model string) *AssistantService {
	return &AssistantService{
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
	}
}

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []assistantMessage `json:"messages"`
	System    string             `json:"system"`
}

type completionResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the most recent turns of history and returns the generated
// reply.
func (s *AssistantService) Complete(ctx context.Context, history []models.Message) (string, error) {
	if len(history) == 0 {
		return "", ErrValidation
	}

	recent := history
	if len(recent) > assistantHistoryLimit {
		recent = recent[len(recent)-assistantHistoryLimit:]
	}

	messages := make([]assistantMessage, 0, len(recent))
	for _, message := range recent {
		role := "assistant"
		if message.Sender == models.RoleUser {
			role = "user"
		}
		messages = append(messages, assistantMessage{Role: role, Content: message.Text})
	}

	payload, err := json.Marshal(completionRequest{
		Model:     s.model,
		MaxTokens: assistantMaxTokens,
		Messages:  messages,
		System:    assistantSystemPrompt,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request failed with status %d", resp.StatusCode)
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", fmt.Errorf("completion response contained no text")
	}
	return decoded.Content[0].Text, nil
}
