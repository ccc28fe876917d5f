package hikebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// Unit is one delivered message. Consumers decide what it is by shape:
// Announcement() succeeds only for assistant payloads carrying the
// announcement schema; everything else is plain text.
type Unit struct {
	models.Message
}

// Announcement parses the unit's content as a trip announcement. ok is false
// for plain chat text.
func (u Unit) Announcement() (*models.Announcement, bool) {
	return models.ParseAnnouncement(u.Content)
}

// Stream is a live subscription to a room.
type Stream struct {
	ws *websocket.Conn
}

// Dial opens a WebSocket subscription to a room.
func (c *Client) Dial(ctx context.Context, roomID uuid.UUID) (*Stream, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1)
	wsURL = fmt.Sprintf("%s/rooms/%s/ws", wsURL, roomID)

	header := http.Header{}
	header.Set("X-User-ID", c.Identity.UserID.String())
	header.Set("X-User-Name", c.Identity.Name)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	return &Stream{ws: ws}, nil
}

// Next blocks until the next message arrives on the stream.
func (s *Stream) Next() (Unit, error) {
	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return Unit{}, err
	}

	var unit Unit
	if err := json.Unmarshal(data, &unit.Message); err != nil {
		return Unit{}, fmt.Errorf("malformed frame: %w", err)
	}
	return unit, nil
}

// Send posts a message over the socket.
func (s *Stream) Send(content string) error {
	frame, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the subscription.
func (s *Stream) Close() error {
	return s.ws.Close()
}
