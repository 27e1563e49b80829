package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) historyParams(w http.ResponseWriter, r *http.Request) (matchID, limit int, ok bool) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store not configured"})
		return 0, 0, false
	}
	matchID, err := strconv.Atoi(chi.URLParam(r, "matchID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "match id must be an integer"})
		return 0, 0, false
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return 0, 0, false
		}
	}
	return matchID, limit, true
}

func (h *Handler) listAnswers(w http.ResponseWriter, r *http.Request) {
	matchID, limit, ok := h.historyParams(w, r)
	if !ok {
		return
	}
	answers, err := h.history.ListAnswers(r.Context(), matchID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) listNarrations(w http.ResponseWriter, r *http.Request) {
	matchID, limit, ok := h.historyParams(w, r)
	if !ok {
		return
	}
	narrations, err := h.history.ListNarrations(r.Context(), matchID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, narrations)
}
