package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pipprompter/server/internal/domain"
)

var ErrServer = errors.New("server error")

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type updateResult struct {
	State    domain.PresentationState `json:"state"`
	Rejected []domain.FieldError      `json:"rejected"`
}

func (c *client) State(ctx context.Context) (domain.PresentationState, error) {
	var s domain.PresentationState
	body, err := c.do(ctx, http.MethodGet, "/state", nil, nil)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return s, fmt.Errorf("failed to decode state: %w", err)
	}

	return s, nil
}

func (c *client) Update(ctx context.Context, patch []byte) (updateResult, error) {
	var res updateResult
	body, err := c.do(ctx, http.MethodPost, "/update", url.Values{"verbose": {"1"}}, patch)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("failed to decode update result: %w", err)
	}

	return res, nil
}

func (c *client) QRCode(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/qr.png", nil, nil)
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	u = u.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var env struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrServer, resp.Status, env.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Status)
	}

	return data, nil
}
