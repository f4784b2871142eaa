package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"compliment_bot/internal/role"
)

const (
	gigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	gigaChatAPIURL   = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	gigaChatModel    = "GigaChat"
	gigaChatScope    = "GIGACHAT_API_PERS"

	// Refresh the OAuth token this long before it actually expires.
	tokenExpiryBuffer = 5 * time.Minute
)

// GigaChat generates compliments through Sber's GigaChat API. Access tokens
// are fetched via OAuth and cached until shortly before expiry.
type GigaChat struct {
	client       HTTPClient
	log          *slog.Logger
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// NewGigaChat creates a GigaChat generator.
func NewGigaChat(client HTTPClient, log *slog.Logger, clientID, clientSecret string) *GigaChat {
	return &GigaChat{
		client:       client,
		log:          log,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	// Unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

// Generate implements Generator.
func (g *GigaChat) Generate(ctx context.Context, name string, r role.Role, previous []string) (string, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return "", &GenerationError{
			Provider: "gigachat",
			Message:  "GigaChat credentials не настроены. Укажите GIGACHAT_CLIENT_ID и GIGACHAT_CLIENT_SECRET.",
		}
	}

	token, err := g.token(ctx)
	if err != nil {
		return "", err
	}

	prompt := r.BuildPrompt(name, previous)

	body, _ := json.Marshal(chatRequest{
		Model:       gigaChatModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   200,
		Temperature: 0.8,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gigaChatAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "внутренняя ошибка запроса", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "GigaChat API ошибка соединения: " + err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "ошибка чтения ответа GigaChat API", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		g.log.Error("gigachat request failed", "status", resp.StatusCode, "body", string(raw))
		return "", &GenerationError{
			Provider: "gigachat",
			Message:  fmt.Sprintf("GigaChat API ошибка (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		g.log.Error("gigachat unexpected response", "body", string(raw))
		return "", &GenerationError{Provider: "gigachat", Message: "GigaChat API вернул неожиданный ответ"}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// token returns a cached access token, refreshing it when needed.
func (g *GigaChat) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && g.now().Before(g.expiresAt.Add(-tokenExpiryBuffer)) {
		return g.accessToken, nil
	}

	form := url.Values{"scope": {gigaChatScope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gigaChatOAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "внутренняя ошибка запроса", Err: err}
	}
	auth := base64.StdEncoding.EncodeToString([]byte(g.clientID + ":" + g.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "Не удалось получить токен GigaChat: " + err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &GenerationError{Provider: "gigachat", Message: "Не удалось получить токен GigaChat", Err: err}
	}

	var parsed oauthResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.AccessToken == "" {
		g.log.Error("gigachat oauth failed", "status", resp.StatusCode, "body", string(raw))
		return "", &GenerationError{
			Provider: "gigachat",
			Message:  "Не удалось получить токен GigaChat: " + strings.TrimSpace(string(raw)),
		}
	}

	g.accessToken = parsed.AccessToken
	if parsed.ExpiresAt > 0 {
		g.expiresAt = time.UnixMilli(parsed.ExpiresAt)
	} else {
		g.expiresAt = g.now().Add(30 * time.Minute)
	}

	g.log.Info("gigachat token refreshed", "expires_at", g.expiresAt)
	return g.accessToken, nil
}
