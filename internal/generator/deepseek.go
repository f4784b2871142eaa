package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"compliment_bot/internal/role"
)

const (
	deepSeekURL   = "https://api.deepseek.com/v1/chat/completions"
	deepSeekModel = "deepseek-chat"
)

// DeepSeek generates compliments through the DeepSeek chat completions API.
type DeepSeek struct {
	client HTTPClient
	log    *slog.Logger
	apiKey string
}

// NewDeepSeek creates a DeepSeek generator.
func NewDeepSeek(client HTTPClient, log *slog.Logger, apiKey string) *DeepSeek {
	return &DeepSeek{client: client, log: log, apiKey: apiKey}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (d *DeepSeek) Generate(ctx context.Context, name string, r role.Role, previous []string) (string, error) {
	if d.apiKey == "" {
		return "", &GenerationError{
			Provider: "deepseek",
			Message:  "DeepSeek API key не настроен. Укажите DEEPSEEK_API_KEY.",
		}
	}

	prompt := r.BuildPrompt(name, previous)

	body, err := json.Marshal(chatRequest{
		Model:       deepSeekModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   200,
		Temperature: 0.8,
	})
	if err != nil {
		return "", &GenerationError{Provider: "deepseek", Message: "внутренняя ошибка запроса", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deepSeekURL, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Provider: "deepseek", Message: "внутренняя ошибка запроса", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &GenerationError{Provider: "deepseek", Message: "ошибка соединения с DeepSeek API: " + err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &GenerationError{Provider: "deepseek", Message: "ошибка чтения ответа DeepSeek API", Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &GenerationError{
			Provider: "deepseek",
			Message:  fmt.Sprintf("DeepSeek API вернул неожиданный ответ (%d)", resp.StatusCode),
			Err:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("DeepSeek API ошибка (%d)", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg += ": " + parsed.Error.Message
		}
		d.log.Error("deepseek request failed", "status", resp.StatusCode)
		return "", &GenerationError{Provider: "deepseek", Message: msg}
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		d.log.Error("deepseek unexpected response", "body", string(raw))
		return "", &GenerationError{Provider: "deepseek", Message: "DeepSeek API вернул неожиданный ответ (нет content)"}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
