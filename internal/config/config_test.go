package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: &Config{
				TelegramBotToken:  "test-token",
				DatabasePath:      "./data/bot.db",
				LogLevel:          "info",
				Timezone:          "Europe/Moscow",
				GeneratorProvider: ProviderDeepSeek,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":       "tok",
				"ADMIN_USERNAME":           "boss",
				"DATABASE_PATH":            "/tmp/bot.db",
				"LOG_LEVEL":                "debug",
				"TIMEZONE":                 "Europe/Berlin",
				"GENERATOR_PROVIDER":       "gigachat",
				"GIGACHAT_CLIENT_ID":       "cid",
				"GIGACHAT_CLIENT_SECRET":   "secret",
				"BITRIX24_PORTAL_URL":      "company.bitrix24.ru",
				"BITRIX24_WEBHOOK_USER_ID": "1",
				"BITRIX24_WEBHOOK_TOKEN":   "hook",
			},
			want: &Config{
				TelegramBotToken:      "tok",
				AdminUsername:         "boss",
				DatabasePath:          "/tmp/bot.db",
				LogLevel:              "debug",
				Timezone:              "Europe/Berlin",
				GeneratorProvider:     ProviderGigaChat,
				GigaChatClientID:      "cid",
				GigaChatClientSecret:  "secret",
				Bitrix24PortalURL:     "company.bitrix24.ru",
				Bitrix24WebhookUserID: "1",
				Bitrix24WebhookToken:  "hook",
			},
		},
		{
			name: "unknown provider",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"GENERATOR_PROVIDER": "markov-chain",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{
				"TELEGRAM_BOT_TOKEN", "ADMIN_USERNAME", "DATABASE_PATH", "LOG_LEVEL",
				"TIMEZONE", "GENERATOR_PROVIDER", "DEEPSEEK_API_KEY",
				"GIGACHAT_CLIENT_ID", "GIGACHAT_CLIENT_SECRET", "CLAUDE_API_KEY",
				"BITRIX24_PORTAL_URL", "BITRIX24_WEBHOOK_USER_ID", "BITRIX24_WEBHOOK_TOKEN",
			} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Load() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load(): %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
