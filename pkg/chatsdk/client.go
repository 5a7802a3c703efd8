package chatsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client wraps the service's HTTP surface: token minting, history reads and
// durable appends. It is the "history store client" a Session builds on, and
// it is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a service client with a sensible request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// MintToken requests a room-scoped capability token for the device.
// Returns ErrAccessDenied when the device has no standing in the room.
func (c *Client) MintToken(ctx context.Context, deviceID string, room RoomRef) (RoomGrant, error) {
	var grant RoomGrant
	err := c.postJSON(ctx, "/v1/rooms/token", mintRequest{
		DeviceID: deviceID,
		RoomType: room.Type,
		RoomID:   room.ID,
	}, &grant)
	return grant, err
}

// FetchRecent returns the last persisted messages for the room, oldest
// first. limit <= 0 uses the server default.
func (c *Client) FetchRecent(
	ctx context.Context,
	deviceID string,
	room RoomRef,
	limit int,
) ([]Message, error) {
	query := url.Values{"device_id": {deviceID}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/v1/rooms/%s/%s/messages?%s",
		url.PathEscape(room.Type), url.PathEscape(room.ID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("chatsdk: build request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatsdk: history fetch: %w", err)
	}

	var msgs []Message
	if err := decodeJSON(resp, &msgs, http.StatusOK); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Append performs one durable write. On success the store has persisted the
// message and attempted a broadcast to the room's other live subscribers;
// the persisted message (with its store-assigned id) is returned to the
// sender only.
func (c *Client) Append(
	ctx context.Context,
	deviceID string,
	room RoomRef,
	text string,
) (Message, error) {
	path := fmt.Sprintf("/v1/rooms/%s/%s/messages",
		url.PathEscape(room.Type), url.PathEscape(room.ID))

	var msg Message
	err := c.postJSON(ctx, path, appendRequest{DeviceID: deviceID, Text: text}, &msg)
	return msg, err
}

// WebsocketURL builds the live channel endpoint for a room, with the token
// and device id as connection credentials.
func (c *Client) WebsocketURL(deviceID, token string, room RoomRef) string {
	scheme := "ws"
	rest := c.BaseURL
	switch {
	case strings.HasPrefix(rest, "https://"):
		scheme = "wss"
		rest = strings.TrimPrefix(rest, "https://")
	case strings.HasPrefix(rest, "http://"):
		rest = strings.TrimPrefix(rest, "http://")
	}

	query := url.Values{
		"device_id": {deviceID},
		"token":     {token},
	}
	return fmt.Sprintf("%s://%s/v1/rooms/%s/%s/ws?%s",
		scheme, rest, url.PathEscape(room.Type), url.PathEscape(room.ID), query.Encode())
}

func (c *Client) postJSON(ctx context.Context, path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("chatsdk: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chatsdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatsdk: request: %w", err)
	}

	return decodeJSON(resp, target, http.StatusOK)
}

// decodeJSON decodes a response into target, mapping non-expected statuses
// to a typed APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chatsdk: read response: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("chatsdk: decode response: %w", err)
	}
	return nil
}
