package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/pitchside/internal/agent"
	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/narration"
	"github.com/nidhogg/pitchside/internal/provider"
	"github.com/nidhogg/pitchside/internal/store"
	"go.uber.org/zap"
)

// History persists answers and narrations. *store.Store implements it.
type History interface {
	SaveAnswer(ctx context.Context, a *store.Answer) error
	ListAnswers(ctx context.Context, matchID, limit int) ([]*store.Answer, error)
	SaveNarration(ctx context.Context, n *store.Narration) error
	ListNarrations(ctx context.Context, matchID, limit int) ([]*store.Narration, error)
}

// Providers exposes the registered text-generation providers.
// *provider.Router implements it.
type Providers interface {
	ListProviders() []provider.Provider
	DefaultID() string
}

// providerCheckTimeout bounds each provider health check.
const providerCheckTimeout = 5 * time.Second

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions  *agent.Sessions
	catalog   match.Catalog
	narrator  *narration.Narrator
	history   History
	providers Providers
	logger    *zap.Logger
}

// NewHandler creates a new API handler. catalog and history may be nil; the
// routes that need them then answer 503.
func NewHandler(
	sessions *agent.Sessions,
	catalog match.Catalog,
	narrator *narration.Narrator,
	history History,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		narrator: narrator,
		history:  history,
		logger:   logger,
	}
}

// SetProviders enables the provider health route.
func (h *Handler) SetProviders(p Providers) {
	h.providers = p
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/health/providers", h.providerHealth)

		// Catalog routes
		r.Get("/competitions", h.listCompetitions)
		r.Get("/competitions/{competitionID}/seasons/{seasonID}/matches", h.listMatches)

		// Session routes
		r.Post("/sessions", h.openSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.closeSession)
			r.Put("/match", h.selectMatch)
			r.Get("/overview", h.overview)
			r.Post("/narration", h.narrateMatch)
			r.Get("/players", h.listPlayers)
			r.Post("/players/profile", h.playerProfile)
			r.Get("/passmap", h.passMap)
			r.Post("/ask", h.ask)
		})

		// History routes
		r.Get("/matches/{matchID}/answers", h.listAnswers)
		r.Get("/matches/{matchID}/narrations", h.listNarrations)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"history":  h.history != nil,
	})
}

type providerStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// providerHealth checks every registered provider concurrently. It answers
// 503 when none of them is reachable.
func (h *Handler) providerHealth(w http.ResponseWriter, r *http.Request) {
	if h.providers == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "providers not configured"})
		return
	}
	list := h.providers.ListProviders()
	defaultID := h.providers.DefaultID()
	out := make([]providerStatus, len(list))

	var wg sync.WaitGroup
	for i, p := range list {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), providerCheckTimeout)
			defer cancel()
			st := providerStatus{ID: p.ID(), Name: p.Name(), Default: p.ID() == defaultID}
			if err := p.HealthCheck(ctx); err != nil {
				st.Error = err.Error()
				h.logger.Warn("provider unhealthy", zap.String("provider", p.ID()), zap.Error(err))
			} else {
				st.Healthy = true
			}
			out[i] = st
		}(i, p)
	}
	wg.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	status := http.StatusServiceUnavailable
	for _, st := range out {
		if st.Healthy {
			status = http.StatusOK
			break
		}
	}
	writeJSON(w, status, map[string]interface{}{"providers": out})
}

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrNoSession),
		errors.Is(err, agent.ErrNoMatch),
		errors.Is(err, match.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, narration.ErrUnknownStyle):
		status = http.StatusBadRequest
	case errors.Is(err, match.ErrDataUnavailable),
		errors.Is(err, agent.ErrTransport),
		errors.Is(err, narration.ErrGeneration):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
