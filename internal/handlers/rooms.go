package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/api/middleware"
	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// roomIDParam parses the {roomID} URL parameter.
func roomIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "roomID"))
	return id, err == nil
}

// CreateRoomRequest represents a room creation request.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// CreateRoom handles POST /rooms. The caller becomes the room's owner and
// first member.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	room, err := h.store.CreateRoom(r.Context(), name, &user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room creation failed")
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.JSON(w, http.StatusCreated, room)
}

// ListRoomsResponse represents the paginated room listing.
type ListRoomsResponse struct {
	Rooms  []models.Room `json:"rooms"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListRooms handles GET /rooms with limit/offset paging.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 200)
	offset := queryInt(r, "offset", 0, 1<<30)

	rooms, total, err := h.store.ListRooms(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("room listing failed")
		h.Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}

	h.JSON(w, http.StatusOK, ListRoomsResponse{
		Rooms:  rooms,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRoom handles GET /rooms/{roomID}.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	room, err := h.store.GetRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to get room")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	h.JSON(w, http.StatusOK, room)
}

// ListMembers handles GET /rooms/{roomID}/members. Only members may see the
// roster.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	roomID, ok := roomIDParam(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	if !h.requireMember(w, r, roomID, user.ID) {
		return
	}

	members, err := h.store.ListMembers(r.Context(), roomID)
	if err != nil {
		h.logger.Error().Err(err).Msg("member listing failed")
		h.Error(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []models.Membership{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// requireMember verifies room existence and membership, writing the error
// response itself. Returns true when the caller may proceed.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, roomID, userID uuid.UUID) bool {
	room, err := h.store.GetRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to get room")
		return false
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return false
	}

	member, err := h.store.IsMember(r.Context(), roomID, userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("membership check failed")
		h.Error(w, http.StatusInternalServerError, "failed to check membership")
		return false
	}
	if !member {
		h.Error(w, http.StatusForbidden, "not a member of this room")
		return false
	}
	return true
}

// queryInt parses an integer query parameter with a default and an upper cap.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
