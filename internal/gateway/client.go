package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/config"
)

// Client talks to the chat platform's REST API. It implements both
// ChannelProvisioner and Notifier.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.BotToken,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

// APIError carries a non-2xx gateway response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
}

// CreateChannel provisions a channel with the given visibility overwrites.
func (c *Client) CreateChannel(ctx context.Context, input CreateChannelInput) (*Channel, error) {
	var channel Channel
	if err := c.do(ctx, http.MethodPost, "/channels", input, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// RenameChannel changes a channel's display name.
func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	payload := map[string]string{"name": name}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, payload, nil)
}

// SetVisibility updates one principal's or role's rules on a channel.
func (c *Client) SetVisibility(ctx context.Context, channelID, targetID string, rules VisibilityRules) error {
	payload := VisibilityOverwrite{TargetID: targetID, Rules: rules}
	return c.do(ctx, http.MethodPut, "/channels/"+channelID+"/visibility", payload, nil)
}

// DeleteChannel removes a channel.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
}

// ChannelExists resolves whether the platform still knows the channel.
func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Send delivers a message into a channel.
func (c *Client) Send(ctx context.Context, channelID string, msg Message) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", msg, nil)
}

// DirectMessage delivers a message to a principal's DM surface.
func (c *Client) DirectMessage(ctx context.Context, principalID string, msg Message) error {
	return c.do(ctx, http.MethodPost, "/principals/"+principalID+"/messages", msg, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode gateway payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("gateway call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
