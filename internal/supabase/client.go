// Package supabase is a small client for the Supabase REST (PostgREST) tables
// the game uses: users and progress.
package supabase

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

const (
	usersPath    = "/rest/v1/users"
	progressPath = "/rest/v1/progress"

	preferMerge = "resolution=merge-duplicates"
)

// StatusError is returned when the REST endpoint answers with a non-2xx code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New builds a client. A zero timeout leaves requests unbounded.
func New(baseURL string, key string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: timeout},
	}
}

// UserRecord is a row of the users table.
type UserRecord struct {
	ID           string   `json:"id"`
	Username     *string  `json:"username"`
	DisplayName  string   `json:"display_name"`
	PhotoURL     *string  `json:"photo_url"`
	Avatar       string   `json:"avatar,omitempty"`
	Badges       []string `json:"badges"`
	Season       string   `json:"season"`
	Achievements string   `json:"achievements"`
}

type progressRow struct {
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt string          `json:"updated_at"`
}

func (c *Client) UpsertUser(ctx context.Context, user UserRecord) error {
	return c.post(ctx, usersPath, user)
}

// FetchUser returns the users row for id, or nil when there is none.
func (c *Client) FetchUser(ctx context.Context, id string) (*UserRecord, error) {
	var rows []UserRecord
	query := url.Values{"id": {"eq." + id}, "select": {"*"}}
	if err := c.get(ctx, usersPath, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpsertProgress writes the progress document for userID, merging on conflict.
func (c *Client) UpsertProgress(ctx context.Context, userID string, data any, updatedAt time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return c.post(ctx, progressPath, progressRow{
		UserID:    userID,
		Data:      raw,
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// FetchProgress returns the stored progress document, or nil when there is none.
func (c *Client) FetchProgress(ctx context.Context, userID string) (json.RawMessage, error) {
	var rows []progressRow
	query := url.Values{"user_id": {"eq." + userID}, "select": {"data"}}
	if err := c.get(ctx, progressPath, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0].Data) == 0 || string(rows[0].Data) == "null" {
		return nil, nil
	}
	return rows[0].Data, nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", preferMerge)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.MethodPost, path)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.MethodGet, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

func checkStatus(resp *http.Response, method string, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
