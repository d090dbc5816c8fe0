package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      Chat          `json:"chat"`
	Text      string        `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type WebAppInfo struct {
	URL string `json:"url"`
}

type InlineKeyboardButton struct {
	Text   string      `json:"text"`
	WebApp *WebAppInfo `json:"web_app,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type SendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// TelegramClient talks to the Bot API over plain HTTPS.
type TelegramClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewTelegramClient builds a client. The HTTP timeout must exceed the long
// poll timeout passed to GetUpdates.
func NewTelegramClient(baseURL string, token string, timeout time.Duration) *TelegramClient {
	return &TelegramClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *TelegramClient) endpoint(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// GetUpdates long-polls for updates after offset.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	query.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getUpdates")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := c.do(req, "getUpdates", &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *TelegramClient) SendMessage(ctx context.Context, msg SendMessageRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "sendMessage", nil)
}

func (c *TelegramClient) do(req *http.Request, method string, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	defer res.Body.Close()

	var response apiResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("%s: decode response (status %d): %w", method, res.StatusCode, err)
	}
	if !response.OK {
		if response.Description == "" {
			response.Description = res.Status
		}
		return fmt.Errorf("%s: %s", method, response.Description)
	}
	if out != nil && len(response.Result) > 0 {
		if err := json.Unmarshal(response.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
