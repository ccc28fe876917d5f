package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/api/middleware"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// PostMessageRequest represents a message post.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// PostMessage handles POST /rooms/{roomID}/messages: the REST ingress path.
// Persist-then-broadcast via the hub, then the planner run is spawned and
// the response returns immediately.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxMessageLength {
		h.Error(w, http.StatusBadRequest, "content too long")
		return
	}

	if !h.requireMember(w, r, roomID, user.ID) {
		return
	}

	msg := &models.Message{
		RoomID:   roomID,
		AuthorID: &user.ID,
		Sender:   user.Name,
		Role:     models.MessageRoleUser,
		Content:  req.Content,
	}

	if err := h.hub.Post(r.Context(), msg); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			h.Error(w, http.StatusNotFound, "room not found")
			return
		}
		h.logger.Error().Err(err).Msg("message post failed")
		h.Error(w, http.StatusInternalServerError, "failed to post message")
		return
	}

	go h.indexMessage(msg)
	go h.planner.Observe(roomID, msg)

	h.JSON(w, http.StatusCreated, msg)
}

// History handles GET /rooms/{roomID}/messages with before/limit paging.
// Without `before` it returns the most recent page; messages are always in
// ascending id order.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	if !h.requireMember(w, r, roomID, user.ID) {
		return
	}

	limit := queryInt(r, "limit", 50, 200)

	var (
		messages []models.Message
		err      error
	)
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || before < 1 {
			h.Error(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		messages, err = h.store.MessagesBefore(r.Context(), roomID, before, limit)
	} else {
		messages, err = h.store.RecentMessages(r.Context(), roomID, limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("history fetch failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"limit":    limit,
	})
}

// LatestMessage handles GET /rooms/{roomID}/messages/latest?role=. Clients
// without a socket poll this to pick up the newest assistant announcement.
func (h *Handler) LatestMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	role := r.URL.Query().Get("role")
	switch role {
	case models.MessageRoleUser, models.MessageRoleAssistant, models.MessageRoleSystem:
	default:
		h.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	// author is optional; absent means system-authored, which is what the
	// announcement polling case wants.
	var authorID *uuid.UUID
	if raw := r.URL.Query().Get("author"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid author id")
			return
		}
		authorID = &id
	}

	if !h.requireMember(w, r, roomID, user.ID) {
		return
	}

	msg, err := h.store.LatestByRoleAndAuthor(r.Context(), roomID, role, authorID)
	if err != nil {
		h.logger.Error().Err(err).Msg("latest message fetch failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch message")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"message": msg})
}

// indexMessage pushes a persisted message into the search index,
// best-effort.
func (h *Handler) indexMessage(msg *models.Message) {
	if h.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.cache.IndexMessage(ctx, msg); err != nil {
		h.logger.Warn().Err(err).Msg("search indexing failed")
	}
}
