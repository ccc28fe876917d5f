// Package hikebot provides a Go client for the HikeBot group-chat backbone.
package hikebot

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

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// BasecampRoom is the ID of the seeded default room.
const BasecampRoom = "00000000-0000-0000-0000-000000000001"

// Identity is the caller identity forwarded in gateway headers.
type Identity struct {
	UserID uuid.UUID
	Name   string
}

// Client is a HikeBot API client.
type Client struct {
	BaseURL    string
	Identity   Identity
	HTTPClient *http.Client
}

// NewClient creates a new client for the given backbone URL.
func NewClient(baseURL string, identity Identity) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Identity:   identity,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.Identity.UserID.String())
	req.Header.Set("X-User-Name", c.Identity.Name)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateRoom creates a room; the caller becomes its owner.
func (c *Client) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	var room models.Room
	err := c.do(ctx, http.MethodPost, "/rooms", map[string]string{"name": name}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// PostMessage posts a message to a room over REST.
func (c *Client) PostMessage(ctx context.Context, roomID uuid.UUID, content string) (*models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/rooms/%s/messages", roomID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// History fetches a page of room history. before == 0 means the latest page;
// messages come back in ascending id order.
func (c *Client) History(ctx context.Context, roomID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	q := url.Values{}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/rooms/%s/messages", roomID)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// LatestAssistant polls for the newest assistant message in a room; nil when
// the assistant has not spoken yet.
func (c *Client) LatestAssistant(ctx context.Context, roomID uuid.UUID) (*models.Message, error) {
	path := fmt.Sprintf("/rooms/%s/messages/latest?role=%s", roomID, models.MessageRoleAssistant)

	var out struct {
		Message *models.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}
