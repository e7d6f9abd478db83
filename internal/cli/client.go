package cli

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
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Me(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", accessToken, nil, &out)
	return out, err
}

func (c *Client) CreateRoom(ctx context.Context, accessToken string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rooms", accessToken, body, &out)
	return out, err
}

func (c *Client) ShowRoom(ctx context.Context, accessToken, roomID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(roomID), accessToken, nil, &out)
	return out, err
}

func (c *Client) JoinRoom(ctx context.Context, accessToken, roomID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rooms/"+url.PathEscape(roomID)+"/join", accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) StartRoom(ctx context.Context, accessToken, roomID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rooms/"+url.PathEscape(roomID)+"/start", accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) RoomStocks(ctx context.Context, accessToken, roomID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(roomID)+"/stocks", accessToken, nil, &out)
	return out, err
}

func (c *Client) Portfolio(ctx context.Context, accessToken, roomID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(roomID)+"/portfolio", accessToken, nil, &out)
	return out, err
}

func (c *Client) Trade(ctx context.Context, accessToken, roomID, stock, side string, qty int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rooms/"+url.PathEscape(roomID)+"/trades", accessToken, map[string]any{
		"stock":    stock,
		"side":     side,
		"quantity": qty,
	}, &out)
	return out, err
}

func (c *Client) SubmitScore(ctx context.Context, accessToken, gameID string, round int, cash, portfolioValue, netWorth float64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/scores", accessToken, map[string]any{
		"round_number":    round,
		"cash":            cash,
		"portfolio_value": portfolioValue,
		"net_worth":       netWorth,
	}, &out)
	return out, err
}

func (c *Client) RoundLeaderboard(ctx context.Context, accessToken, gameID string, round int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/games/%s/leaderboard/%d", url.PathEscape(gameID), round), accessToken, nil, &out)
	return out, err
}

func (c *Client) SubmitFinalScore(ctx context.Context, accessToken, gameID string, finalNetWorth float64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/final-score", accessToken, map[string]any{
		"final_net_worth": finalNetWorth,
	}, &out)
	return out, err
}

func (c *Client) FinalLeaderboard(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/final-leaderboard", accessToken, nil, &out)
	return out, err
}

func (c *Client) SendChat(ctx context.Context, accessToken, gameID, message string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/chats", accessToken, map[string]any{
		"message": message,
	}, &out)
	return out, err
}

func (c *Client) ListChats(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/chats", accessToken, nil, &out)
	return out, err
}

// EventsURL builds the websocket address for a room's live feed. The
// token rides in the query string because browser and CLI dialers cannot
// always set headers before the upgrade.
func (c *Client) EventsURL(roomID, accessToken string) string {
	base := c.BaseURL
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/v1/rooms/" + url.PathEscape(roomID) + "/events?token=" + url.QueryEscape(accessToken)
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
