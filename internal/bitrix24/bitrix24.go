// Package bitrix24 is a client for the Bitrix24 inbound webhook REST API.
package bitrix24

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Appended below every delivered compliment, as the portal renders BB-code.
const signature = "\n[size=10][i]Сообщение сгенерировано роботом, но с любовью[/i][/size]"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls Bitrix24 REST methods through an inbound webhook.
// A zero-configured client reports IsConfigured() == false and every
// call fails; callers gate Bitrix24 features on that.
type Client struct {
	client        HTTPClient
	log           *slog.Logger
	portalURL     string
	webhookUserID string
	webhookToken  string
}

// UserInfo is the subset of im.user.get used for display names.
type UserInfo struct {
	Name      string
	FirstName string
	LastName  string
}

// New creates a Client. Empty credentials produce an unconfigured client.
func New(client HTTPClient, log *slog.Logger, portalURL, webhookUserID, webhookToken string) *Client {
	return &Client{
		client:        client,
		log:           log,
		portalURL:     portalURL,
		webhookUserID: webhookUserID,
		webhookToken:  webhookToken,
	}
}

// IsConfigured reports whether all webhook credentials are present.
func (c *Client) IsConfigured() bool {
	return c.portalURL != "" && c.webhookUserID != "" && c.webhookToken != ""
}

// PortalURL returns the configured portal host.
func (c *Client) PortalURL() string {
	return c.portalURL
}

type apiResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	// error_description accompanies the error code.
	ErrorDescription string `json:"error_description"`
}

// SendMessage delivers a direct message to the given portal user via
// im.message.add. The robot signature is appended to every message.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string) error {
	payload := map[string]string{
		"DIALOG_ID": strconv.FormatInt(userID, 10),
		"MESSAGE":   text + signature,
	}

	if _, err := c.call(ctx, "im.message.add", payload); err != nil {
		c.log.Error("bitrix24 send message", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// UserInfo fetches a portal user's name via im.user.get.
func (c *Client) UserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	result, err := c.call(ctx, "im.user.get", map[string]string{
		"ID": strconv.FormatInt(userID, 10),
	})
	if err != nil {
		c.log.Error("bitrix24 user info", "user_id", userID, "error", err)
		return nil, err
	}

	var raw struct {
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode im.user.get result: %w", err)
	}

	info := &UserInfo{Name: raw.Name, FirstName: raw.FirstName, LastName: raw.LastName}
	if info.Name == "" {
		info.Name = strings.TrimSpace(raw.FirstName + " " + raw.LastName)
	}
	return info, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("bitrix24 is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%s: unexpected response (%d)", method, resp.StatusCode)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%s: %s (%s)", method, parsed.Error, parsed.ErrorDescription)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return parsed.Result, nil
}

func (c *Client) methodURL(method string) string {
	portal := strings.TrimRight(c.portalURL, "/")
	if !strings.HasPrefix(portal, "https://") && !strings.HasPrefix(portal, "http://") {
		portal = "https://" + portal
	}
	return fmt.Sprintf("%s/rest/%s/%s/%s.json", portal, c.webhookUserID, c.webhookToken, method)
}
