package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"

	"compliment_bot/internal/role"
)

const (
	claudeURL     = "https://api.anthropic.com/v1/messages"
	claudeModel   = "claude-3-haiku-20240307"
	claudeVersion = "2023-06-01"
)

// Claude generates compliments through the Anthropic messages API. Unlike the
// other providers it degrades to a built-in compliment list instead of
// failing, so a missing key or a provider outage never blocks delivery.
type Claude struct {
	client HTTPClient
	log    *slog.Logger
	apiKey string
}

// NewClaude creates a Claude generator.
func NewClaude(client HTTPClient, log *slog.Logger, apiKey string) *Claude {
	return &Claude{client: client, log: log, apiKey: apiKey}
}

var fallbackCompliments = []string{
	"Ты освещаешь мой мир своей улыбкой каждый день.",
	"Твоя доброта делает мир лучше.",
	"Рядом с тобой я становлюсь лучшей версией себя.",
	"Ты самое красивое, что случилось в моей жизни.",
	"Твои глаза — мои любимые звёзды.",
	"Каждый день с тобой — подарок.",
	"Ты умеешь найти свет даже в самые тёмные дни.",
	"Твоя улыбка — лучшее лекарство от всех проблем.",
	"Ты вдохновляешь меня быть лучше.",
	"С тобой даже обычные моменты становятся волшебными.",
	"Ты — моя любимая мелодия.",
	"Твоя нежность согревает моё сердце.",
	"Ты делаешь каждый день особенным.",
	"Рядом с тобой я чувствую себя дома.",
	"Ты — мой лучший друг и любовь всей жизни.",
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Generate implements Generator. It never returns an error.
func (c *Claude) Generate(ctx context.Context, name string, r role.Role, previous []string) (string, error) {
	if c.apiKey == "" {
		return c.fallback(), nil
	}

	prompt := r.BuildPrompt(name, previous)

	body, _ := json.Marshal(claudeRequest{
		Model:     claudeModel,
		MaxTokens: 200,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeURL, bytes.NewReader(body))
	if err != nil {
		return c.fallback(), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", claudeVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("claude request failed", "error", err)
		return c.fallback(), nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log.Error("claude read response", "error", err)
		return c.fallback(), nil
	}

	var parsed claudeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil ||
		resp.StatusCode != http.StatusOK ||
		len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		c.log.Warn("claude unexpected response", "status", resp.StatusCode, "body", string(raw))
		return c.fallback(), nil
	}

	return strings.TrimSpace(parsed.Content[0].Text), nil
}

func (c *Claude) fallback() string {
	return fallbackCompliments[rand.Intn(len(fallbackCompliments))]
}
