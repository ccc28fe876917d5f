package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/xannhsux/dsci560-hikebot/internal/api/middleware"
	"github.com/xannhsux/dsci560-hikebot/internal/hub"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin policy is the gateway's concern; the backbone serves
	// trusted internal callers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsInbound is the frame shape clients send on the socket.
type wsInbound struct {
	Content string `json:"content"`
}

// ServeWS handles GET /rooms/{roomID}/ws: membership check, upgrade, hub
// Join, then the read loop. Access is decided before the registry is
// touched, so a rejected caller leaves no trace in the hub.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	if !h.requireMember(w, r, roomID, user.ID) {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ws.SetReadLimit(maxMessageLength + 512)

	conn := h.hub.Join(roomID, *user, hub.NewWSSender(ws))
	h.logger.Info().
		Str("room", roomID.String()).
		Str("user", user.ID.String()).
		Str("conn", conn.ID).
		Msg("websocket joined")

	defer func() {
		h.hub.Leave(roomID, user.ID)
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("conn", conn.ID).Msg("websocket read error")
			}
			return
		}

		var inbound wsInbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			// Bare text frames are accepted as content.
			inbound.Content = string(data)
		}
		if inbound.Content == "" || len(inbound.Content) > maxMessageLength {
			continue
		}

		msg := &models.Message{
			RoomID:   roomID,
			AuthorID: &user.ID,
			Sender:   user.Name,
			Role:     models.MessageRoleUser,
			Content:  inbound.Content,
		}

		if err := h.hub.Post(r.Context(), msg); err != nil {
			h.logger.Error().Err(err).Str("conn", conn.ID).Msg("socket message post failed")
			continue
		}

		go h.indexMessage(msg)
		go h.planner.Observe(roomID, msg)
	}
}
