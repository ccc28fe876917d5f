package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single socket write may block a broadcast.
const writeWait = 10 * time.Second

// WSSender adapts a gorilla websocket connection to the Sender interface.
// The mutex serializes writes: broadcasts and the close handshake can race
// over the same socket.
type WSSender struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewWSSender wraps an upgraded websocket connection.
func NewWSSender(ws *websocket.Conn) *WSSender {
	return &WSSender{ws: ws}
}

// Send writes one text frame under the write mutex with a deadline.
func (s *WSSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame best-effort and closes the socket.
func (s *WSSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.ws.Close()
}
