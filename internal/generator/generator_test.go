package generator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"compliment_bot/internal/role"
)

type mockTransport struct {
	// responses are returned in request order; the last one repeats.
	responses []mockResponse
	requests  []*http.Request
	bodies    []string
}

type mockResponse struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeepSeekGenerate(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		response mockResponse
		want     string
		wantErr  bool
	}{
		{
			name:     "success",
			apiKey:   "key",
			response: mockResponse{statusCode: 200, body: `{"choices":[{"message":{"role":"assistant","content":"  Ты чудо!  "}}]}`},
			want:     "Ты чудо!",
		},
		{
			name:    "missing key",
			apiKey:  "",
			wantErr: true,
		},
		{
			name:     "api error status",
			apiKey:   "key",
			response: mockResponse{statusCode: 402, body: `{"error":{"message":"Insufficient Balance"}}`},
			wantErr:  true,
		},
		{
			name:     "no content in response",
			apiKey:   "key",
			response: mockResponse{statusCode: 200, body: `{"choices":[]}`},
			wantErr:  true,
		},
		{
			name:     "transport error",
			apiKey:   "key",
			response: mockResponse{err: errors.New("connection refused")},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{responses: []mockResponse{tt.response}}
			g := NewDeepSeek(transport, discardLog(), tt.apiKey)

			got, err := g.Generate(context.Background(), "Анна", role.Wife, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Generate() = %q, want error", got)
				}
				var genErr *GenerationError
				if !errors.As(err, &genErr) {
					t.Fatalf("error should be *GenerationError, got %T", err)
				}
				if genErr.UserMessage() == "" {
					t.Error("GenerationError should carry a user message")
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate(): %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeepSeekSendsPreviousTexts(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{statusCode: 200, body: `{"choices":[{"message":{"content":"ok"}}]}`},
	}}
	g := NewDeepSeek(transport, discardLog(), "key")

	if _, err := g.Generate(context.Background(), "Анна", role.Wife, []string{"C", "B"}); err != nil {
		t.Fatalf("Generate(): %v", err)
	}

	body := transport.bodies[0]
	if !strings.Contains(body, "C") || !strings.Contains(body, "B") {
		t.Errorf("request body should embed previous texts, got: %s", body)
	}
	if auth := transport.requests[0].Header.Get("Authorization"); auth != "Bearer key" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestGigaChatTokenFlow(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{statusCode: 200, body: `{"access_token":"tok-1","expires_at":4102444800000}`},
		{statusCode: 200, body: `{"choices":[{"message":{"content":"Комплимент"}}]}`},
		{statusCode: 200, body: `{"choices":[{"message":{"content":"Ещё один"}}]}`},
	}}
	g := NewGigaChat(transport, discardLog(), "cid", "secret")
	g.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }

	got, err := g.Generate(context.Background(), "", role.Neutral, nil)
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	if got != "Комплимент" {
		t.Errorf("Generate() = %q", got)
	}

	// Second call must reuse the cached token: no extra OAuth request.
	if _, err := g.Generate(context.Background(), "", role.Neutral, nil); err != nil {
		t.Fatalf("second Generate(): %v", err)
	}
	if len(transport.requests) != 3 {
		t.Fatalf("expected 3 requests (1 oauth + 2 chat), got %d", len(transport.requests))
	}

	oauthReq := transport.requests[0]
	if oauthReq.URL.String() != gigaChatOAuthURL {
		t.Errorf("first request should hit the OAuth endpoint, got %s", oauthReq.URL)
	}
	if oauthReq.Header.Get("RqUID") == "" {
		t.Error("OAuth request should carry a RqUID header")
	}
	if got := transport.requests[1].Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("chat Authorization = %q", got)
	}
}

func TestGigaChatMissingCredentials(t *testing.T) {
	g := NewGigaChat(&mockTransport{responses: []mockResponse{{statusCode: 200}}}, discardLog(), "", "")
	if _, err := g.Generate(context.Background(), "", role.Neutral, nil); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestClaudeFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		responses []mockResponse
	}{
		{name: "missing key", apiKey: "", responses: []mockResponse{{statusCode: 200}}},
		{name: "transport error", apiKey: "key", responses: []mockResponse{{err: errors.New("boom")}}},
		{name: "bad status", apiKey: "key", responses: []mockResponse{{statusCode: 529, body: `{"type":"error"}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewClaude(&mockTransport{responses: tt.responses}, discardLog(), tt.apiKey)
			got, err := g.Generate(context.Background(), "", role.Wife, nil)
			if err != nil {
				t.Fatalf("Claude should never fail, got %v", err)
			}
			found := false
			for _, c := range fallbackCompliments {
				if got == c {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Generate() = %q, want one of the fallback compliments", got)
			}
		})
	}
}

func TestClaudeSuccess(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{statusCode: 200, body: `{"content":[{"type":"text","text":"Ты лучшая"}]}`},
	}}
	g := NewClaude(transport, discardLog(), "key")

	got, err := g.Generate(context.Background(), "Анна", role.Wife, nil)
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	if got != "Ты лучшая" {
		t.Errorf("Generate() = %q", got)
	}
	if v := transport.requests[0].Header.Get("anthropic-version"); v != claudeVersion {
		t.Errorf("anthropic-version = %q", v)
	}
}
