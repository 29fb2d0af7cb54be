// Package line provides the LINE Messaging API push client and the LINE
// ID-token verifier. Delivery is best-effort: the caller decides whether a
// send failure matters, this client only reports it.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
)

const defaultBaseURL = "https://api.line.me"

type Client struct {
	baseURL     string
	accessToken string
	channelID   string
	http        *http.Client
	log         *logger.Logger
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// NewClient creates a LINE client. Returns nil when the channel access token
// is not configured; a nil client silently skips every send.
func NewClient(cfg config.LineConfig, log *logger.Logger) *Client {
	if !cfg.IsLineEnabled() {
		return nil
	}

	return &Client{
		baseURL:     defaultBaseURL,
		accessToken: cfg.GetLineChannelAccessToken(),
		channelID:   cfg.GetLineChannelID(),
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if c == nil {
		return nil
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Push sends a text message to the given LINE user.
func (c *Client) Push(ctx context.Context, lineUserID string, text string) error {
	if c == nil {
		return nil
	}

	payload := pushRequest{
		To:       lineUserID,
		Messages: []textMessage{{Type: "text", Text: text}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal line payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/bot/message/push", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line push failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("line api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("line push sent", "recipient", lineUserID)
	return nil
}

// VerifiedIdentity is the subject resolved from a LINE ID token.
type VerifiedIdentity struct {
	Subject string
	Name    string
	Email   string
}

type verifyResponse struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// VerifyIDToken verifies a LINE Login ID token against the LINE token
// verification endpoint and returns the token's subject.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (VerifiedIdentity, error) {
	if c == nil {
		return VerifiedIdentity{}, fmt.Errorf("line channel not configured")
	}

	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("client_id", c.channelID)

	endpoint := fmt.Sprintf("%s/oauth2/v2.1/verify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return VerifiedIdentity{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return VerifiedIdentity{}, fmt.Errorf("line verify failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return VerifiedIdentity{}, fmt.Errorf("decode line verify response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || parsed.Error != "" {
		return VerifiedIdentity{}, fmt.Errorf("line token rejected: %s", parsed.Error)
	}
	if parsed.Sub == "" {
		return VerifiedIdentity{}, fmt.Errorf("line token missing subject")
	}

	return VerifiedIdentity{Subject: parsed.Sub, Name: parsed.Name, Email: parsed.Email}, nil
}
