package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/moodsense/internal/store"
)

// DefaultSessionLimit is the number of sessions listed when no limit is given.
const DefaultSessionLimit = 50

// SessionHandler serves recorded sessions and their mood transitions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/transitions. Only GET is supported.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch rest {
	case "":
		h.get(w, r, id)
	case "transitions":
		h.transitions(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

type sessionResponse struct {
	ID        string         `json:"id"`
	StreamID  string         `json:"stream_id,omitempty"`
	StartedAt string         `json:"started_at"`
	EndedAt   string         `json:"ended_at,omitempty"`
	Frames    int64          `json:"frames"`
	Moods     map[string]int `json:"moods,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type transitionsResponse struct {
	SessionID   string             `json:"session_id"`
	Transitions []store.Transition `json:"transitions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		StreamID:  s.StreamID,
		StartedAt: formatTime(s.StartedAt),
		Frames:    s.Frames,
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp
}

// list handles GET /api/sessions?limit=N.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}, including per-mood transition counts.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	counts, err := h.store.Transitions().CountByMood(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count transitions")
		return
	}

	resp := toSessionResponse(sess)
	resp.Moods = counts
	writeJSON(w, http.StatusOK, resp)
}

// transitions handles GET /api/sessions/{id}/transitions.
func (h *SessionHandler) transitions(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	list, err := h.store.Transitions().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transitions")
		return
	}
	if list == nil {
		list = []store.Transition{}
	}

	writeJSON(w, http.StatusOK, transitionsResponse{SessionID: id, Transitions: list})
}
