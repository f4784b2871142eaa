// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
)

// Supported generation providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderGigaChat = "gigachat"
	ProviderClaude   = "claude"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	AdminUsername    string
	DatabasePath     string
	LogLevel         string
	Timezone         string

	GeneratorProvider    string
	DeepSeekAPIKey       string
	GigaChatClientID     string
	GigaChatClientSecret string
	ClaudeAPIKey         string

	Bitrix24PortalURL     string
	Bitrix24WebhookUserID string
	Bitrix24WebhookToken  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	provider := envOrDefault("GENERATOR_PROVIDER", ProviderDeepSeek)
	switch provider {
	case ProviderDeepSeek, ProviderGigaChat, ProviderClaude:
	default:
		return nil, fmt.Errorf("unknown GENERATOR_PROVIDER %q, use: deepseek, gigachat, claude", provider)
	}

	return &Config{
		TelegramBotToken: token,
		AdminUsername:    os.Getenv("ADMIN_USERNAME"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		Timezone:         envOrDefault("TIMEZONE", "Europe/Moscow"),

		GeneratorProvider:    provider,
		DeepSeekAPIKey:       os.Getenv("DEEPSEEK_API_KEY"),
		GigaChatClientID:     os.Getenv("GIGACHAT_CLIENT_ID"),
		GigaChatClientSecret: os.Getenv("GIGACHAT_CLIENT_SECRET"),
		ClaudeAPIKey:         os.Getenv("CLAUDE_API_KEY"),

		Bitrix24PortalURL:     os.Getenv("BITRIX24_PORTAL_URL"),
		Bitrix24WebhookUserID: os.Getenv("BITRIX24_WEBHOOK_USER_ID"),
		Bitrix24WebhookToken:  os.Getenv("BITRIX24_WEBHOOK_TOKEN"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
