package persist

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

	"RPGMixer/core/playback"
	"RPGMixer/model"
)

var _ playback.Persister = (*Client)(nil)

// Client 持久化服务的 HTTP 客户端, 实现 playback.Persister
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	*queue
}

// NewClient creates a client for the persistence API at baseURL. token is sent
// as a bearer credential when non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		queue:      newQueue(timeout),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// FetchTracks 获取全部曲目
func (c *Client) FetchTracks(ctx context.Context) ([]model.Track, error) {
	var tracks []model.Track
	err := c.do(ctx, http.MethodGet, "/api/tracks", nil, &tracks)
	return tracks, err
}

// FetchPresets 获取全部环境音预设
func (c *Client) FetchPresets(ctx context.Context) ([]model.AmbiencePreset, error) {
	var presets []model.AmbiencePreset
	err := c.do(ctx, http.MethodGet, "/api/presets", nil, &presets)
	return presets, err
}

// FetchSettings 获取上次会话的设置
func (c *Client) FetchSettings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

// FetchOrders 获取播放列表顺序
func (c *Client) FetchOrders(ctx context.Context) (model.PlaylistOrders, error) {
	orders := model.PlaylistOrders{}
	err := c.do(ctx, http.MethodGet, "/api/playlist-orders", nil, &orders)
	return orders, err
}

func (c *Client) SaveSettings(s model.Settings) {
	c.submit("save settings", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, "/api/settings", s, nil)
	})
}

func (c *Client) SavePreset(p model.AmbiencePreset) {
	c.submit("save preset", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/api/presets", p, nil)
	})
}

func (c *Client) DeletePreset(id string) {
	c.submit("delete preset", func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, "/api/presets/"+url.PathEscape(id), nil, nil)
	})
}

func (c *Client) SavePlaylistOrder(key string, trackIDs []string) {
	ids := append([]string{}, trackIDs...)
	c.submit("save playlist order", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, "/api/playlist-orders/"+url.PathEscape(key), ids, nil)
	})
}
