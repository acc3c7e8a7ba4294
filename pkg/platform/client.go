package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatvault/internal/errors"
	"chatvault/pkg/platform/types"
)

// Client talks to the platform gateway over its JSON HTTP API. The gateway
// owns the platform wire protocol and session handling; this client only
// shapes requests and decodes responses.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ types.Client = (*Client)(nil)

func (c *Client) FetchHistoryPage(ctx context.Context, req types.HistoryRequest) ([]types.RawMessage, error) {
	payload := map[string]interface{}{
		"chatId":   req.ChatID,
		"anchorId": req.AnchorID,
		"limit":    req.Limit,
		"minId":    req.MinID,
		"maxId":    req.MaxID,
	}

	var result struct {
		Messages []types.RawMessage `json:"messages"`
	}
	if err := c.postJSON(ctx, "/api/history", payload, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (c *Client) DownloadMedia(ctx context.Context, media types.RawMedia) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"fileId": media.FileID,
		"kind":   media.Kind,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal download request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media/download", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewMediaError("download", media.FileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewPlatformError("/api/media/download", resp.StatusCode,
			fmt.Errorf("media download failed with status %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) InitTakeoutSession(ctx context.Context) (types.TakeoutSession, error) {
	var session types.TakeoutSession
	if err := c.postJSON(ctx, "/api/takeout/init", map[string]interface{}{}, &session); err != nil {
		return types.TakeoutSession{}, err
	}
	return session, nil
}

func (c *Client) FinishTakeoutSession(ctx context.Context, session types.TakeoutSession, success bool) error {
	payload := map[string]interface{}{
		"sessionId": session.ID,
		"success":   success,
	}
	return c.postJSON(ctx, "/api/takeout/finish", payload, nil)
}

func (c *Client) GetTotalCount(ctx context.Context, chatID int64) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/chats/%d/count", chatID), &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (c *Client) GetMe(ctx context.Context) (types.Identity, error) {
	var identity types.Identity
	if err := c.getJSON(ctx, "/api/me", &identity); err != nil {
		return types.Identity{}, err
	}
	return identity, nil
}

func (c *Client) PollUpdates(ctx context.Context) (*types.Updates, error) {
	var updates types.Updates
	if err := c.getJSON(ctx, "/api/updates", &updates); err != nil {
		return nil, err
	}
	return &updates, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewPlatformError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewPlatformError(endpoint, resp.StatusCode,
			fmt.Errorf("request failed with status %d", resp.StatusCode))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) // nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
