package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nidhogg/pitchside/internal/agent"
	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/narration"
	"github.com/nidhogg/pitchside/internal/store"
	"go.uber.org/zap"
)

func (h *Handler) listCompetitions(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "match catalog not configured"})
		return
	}
	comps, err := h.catalog.ListCompetitions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comps)
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "match catalog not configured"})
		return
	}
	competitionID, err1 := strconv.Atoi(chi.URLParam(r, "competitionID"))
	seasonID, err2 := strconv.Atoi(chi.URLParam(r, "seasonID"))
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "competition and season ids must be integers"})
		return
	}
	summaries, err := h.catalog.ListMatches(r.Context(), competitionID, seasonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]match.Info, 0, len(summaries))
	for i := range summaries {
		out = append(out, summaries[i].Info())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	key := h.sessions.Open()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": key})
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "sessionID")) {
		h.writeError(w, agent.ErrNoSession)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overviewResponse struct {
	Ref     match.Ref  `json:"ref"`
	Info    match.Info `json:"info"`
	Result  string     `json:"result"`
	Context string     `json:"context"`
}

func newOverview(sess *agent.Session) overviewResponse {
	info := sess.Dataset.Info
	return overviewResponse{
		Ref:     sess.Ref,
		Info:    info,
		Result:  info.Result(),
		Context: info.Context(),
	}
}

func (h *Handler) selectMatch(w http.ResponseWriter, r *http.Request) {
	var ref match.Ref
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if ref.MatchID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "match_id is required"})
		return
	}
	sess, err := h.sessions.Select(r.Context(), chi.URLParam(r, "sessionID"), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOverview(sess))
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Current(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOverview(sess))
}

type narrationRequest struct {
	Style string `json:"style"`
}

func (h *Handler) narrateMatch(w http.ResponseWriter, r *http.Request) {
	var req narrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	style, err := narration.ParseStyle(req.Style)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sess, err := h.sessions.Current(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	content, err := h.narrator.MatchSummary(r.Context(), sess.Dataset, style)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.saveNarration(r, &store.Narration{
		MatchID:  sess.Ref.MatchID,
		Kind:     store.KindMatch,
		Style:    string(style),
		Language: h.narrator.Language(),
		Content:  content,
	})
	writeJSON(w, http.StatusOK, map[string]string{"style": string(style), "content": content})
}

type teamPlayers struct {
	Team    string   `json:"team"`
	Players []string `json:"players"`
}

func (h *Handler) listPlayers(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Current(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	events := sess.Dataset.Timeline()
	home, away := match.Teams(events)
	teams := []teamPlayers{}
	for _, team := range []string{home, away} {
		if team == "" {
			continue
		}
		players := match.Players(events, team)
		if players == nil {
			players = []string{}
		}
		teams = append(teams, teamPlayers{Team: team, Players: players})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

type profileRequest struct {
	Player  string `json:"player"`
	Narrate *bool  `json:"narrate,omitempty"`
}

func (h *Handler) playerProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Player) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player is required"})
		return
	}
	sess, err := h.sessions.Current(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	profile, ok := match.PlayerProfile(sess.Dataset.Timeline(), req.Player)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "player has no events in this match"})
		return
	}
	resp := map[string]interface{}{"profile": profile}
	if req.Narrate == nil || *req.Narrate {
		content, err := h.narrator.PlayerProfile(r.Context(), sess.Dataset, profile)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.saveNarration(r, &store.Narration{
			MatchID:  sess.Ref.MatchID,
			Kind:     store.KindPlayer,
			Player:   profile.Player,
			Language: h.narrator.Language(),
			Content:  content,
		})
		resp["narrative"] = content
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) passMap(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	team := r.URL.Query().Get("team")
	if player == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player query parameter is required"})
		return
	}
	sess, err := h.sessions.Current(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"team":   team,
		"player": player,
		"passes": match.PassMap(sess.Dataset.Timeline(), team, player),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	key := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Current(key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := sess.Ask(r.Context(), question)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.history != nil {
		a := &store.Answer{
			SessionID:  key,
			MatchID:    sess.Ref.MatchID,
			Question:   question,
			Output:     result.Output,
			Outcome:    result.Outcome,
			Iterations: result.Iterations,
			Steps:      result.Steps,
		}
		if err := h.history.SaveAnswer(r.Context(), a); err != nil {
			h.logger.Warn("save answer failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) saveNarration(r *http.Request, n *store.Narration) {
	if h.history == nil {
		return
	}
	if err := h.history.SaveNarration(r.Context(), n); err != nil {
		h.logger.Warn("save narration failed", zap.Error(err))
	}
}
