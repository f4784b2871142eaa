// Package generator produces compliment texts via external AI providers.
//
// All providers implement the single Generator interface; the concrete one is
// picked from configuration at construction time.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"compliment_bot/internal/config"
	"compliment_bot/internal/role"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generator produces one compliment for the given recipient.
// previous holds recently sent texts, newest first, used to steer the
// provider away from repetition.
type Generator interface {
	Generate(ctx context.Context, name string, r role.Role, previous []string) (string, error)
}

// GenerationError is a provider-side failure. Its message is safe to show to
// the affected end user.
type GenerationError struct {
	Provider string
	Message  string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the end user in place of a compliment.
func (e *GenerationError) UserMessage() string {
	return e.Message
}

// New builds the generator selected by cfg.GeneratorProvider.
func New(cfg *config.Config, client HTTPClient, log *slog.Logger) (Generator, error) {
	switch cfg.GeneratorProvider {
	case config.ProviderDeepSeek:
		return NewDeepSeek(client, log, cfg.DeepSeekAPIKey), nil
	case config.ProviderGigaChat:
		return NewGigaChat(client, log, cfg.GigaChatClientID, cfg.GigaChatClientSecret), nil
	case config.ProviderClaude:
		return NewClaude(client, log, cfg.ClaudeAPIKey), nil
	}
	return nil, fmt.Errorf("unknown generator provider %q", cfg.GeneratorProvider)
}
