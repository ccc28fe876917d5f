package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/store"
)

// RoomStats represents stats for a single room.
type RoomStats struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MessageCount int64  `json:"message_count"`
}

// MessagePreview represents a preview of a message.
type MessagePreview struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender_display"`
	Role      string `json:"role"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalRooms     int64            `json:"total_rooms"`
	TotalMessages  int64            `json:"total_messages"`
	LastActivity   string           `json:"last_activity"`
	TopRooms       []RoomStats      `json:"top_rooms"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// Stats returns platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalRooms, err := h.store.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.store.SumMessageCount(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	lastActivity := ""
	if ts, err := h.store.GetMostRecentActivity(ctx); err == nil && ts != nil {
		lastActivity = ts.UTC().Format(time.RFC3339)
	}

	topRooms := []RoomStats{}
	if rooms, err := h.store.GetTopActiveRooms(ctx, 5); err == nil {
		for _, room := range rooms {
			topRooms = append(topRooms, RoomStats{
				ID:           room.ID.String(),
				Name:         room.Name,
				MessageCount: room.MessageCount,
			})
		}
	}

	recent := []MessagePreview{}
	basecamp := uuid.MustParse(store.BasecampRoomID)
	if messages, err := h.store.RecentMessages(ctx, basecamp, 5); err == nil {
		for _, msg := range messages {
			body := msg.Content
			if len(body) > 120 {
				body = body[:120] + "..."
			}
			recent = append(recent, MessagePreview{
				ID:        msg.ID,
				Sender:    msg.Sender,
				Role:      msg.Role,
				Body:      body,
				Timestamp: msg.CreatedAt.Unix(),
			})
		}
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalRooms:     totalRooms,
		TotalMessages:  totalMessages,
		LastActivity:   lastActivity,
		TopRooms:       topRooms,
		RecentMessages: recent,
	})
}
