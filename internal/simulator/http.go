package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/ecoledger/internal/domain/types"
)

const maxErrorBody = 512

// outcome of one submitted action.
type outcome int

const (
	outcomeApplied outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// client talks to the rewards API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

func (c *client) health(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// track submits one action. Both response shapes share the status field.
func (c *client) track(ctx context.Context, req types.TrackActionRequest) (outcome, error) {
	var ack struct {
		Status    string `json:"status"`
		Duplicate bool   `json:"duplicate"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/rewards", req, &ack); err != nil {
		return outcomeFailed, err
	}
	if ack.Duplicate {
		return outcomeDuplicate, nil
	}
	return outcomeApplied, nil
}

func (c *client) user(ctx context.Context, userID string) (*types.UserRewardsResponse, error) {
	var out types.UserRewardsResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/rewards/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) leaderboard(ctx context.Context, location string, limit int) (*types.LeaderboardResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if location != "" {
		q.Set("type", "regional")
		q.Set("location", location)
	}
	var out types.LeaderboardResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/rewards/leaderboard?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
