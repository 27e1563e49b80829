package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nidhogg/pitchside/internal/cache"
	"go.uber.org/zap"
)

// DefaultBaseURL is the raw-content root of the StatsBomb open-data repository.
const DefaultBaseURL = "https://raw.githubusercontent.com/statsbomb/open-data/master/data"

// StatsBombConfig configures the open-data client.
type StatsBombConfig struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// StatsBomb reads competitions, matches, events and lineups from the
// open-data repository layout. Raw documents are cached.
type StatsBomb struct {
	baseURL string
	ttl     time.Duration
	client  *http.Client
	cache   cache.Cache
	logger  *zap.Logger
}

var (
	_ DataProvider = (*StatsBomb)(nil)
	_ Catalog      = (*StatsBomb)(nil)
)

// NewStatsBomb creates an open-data client.
func NewStatsBomb(cfg StatsBombConfig, c cache.Cache, logger *zap.Logger) *StatsBomb {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &StatsBomb{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.CacheTTL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   c,
		logger:  logger,
	}
}

// ListCompetitions returns every competition season in the repository.
func (s *StatsBomb) ListCompetitions(ctx context.Context) ([]Competition, error) {
	var out []Competition
	if err := s.get(ctx, "competitions.json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMatches returns the matches of one competition season.
func (s *StatsBomb) ListMatches(ctx context.Context, competitionID, seasonID int) ([]Summary, error) {
	var out []Summary
	if err := s.get(ctx, fmt.Sprintf("matches/%d/%d.json", competitionID, seasonID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Events returns the event stream of a match.
func (s *StatsBomb) Events(ctx context.Context, matchID int) ([]Event, error) {
	var out []Event
	if err := s.get(ctx, fmt.Sprintf("events/%d.json", matchID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lineups returns both team sheets of a match.
func (s *StatsBomb) Lineups(ctx context.Context, matchID int) ([]TeamLineup, error) {
	var out []TeamLineup
	if err := s.get(ctx, fmt.Sprintf("lineups/%d.json", matchID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch loads all four views of ref.
func (s *StatsBomb) Fetch(ctx context.Context, ref Ref) (*Dataset, error) {
	matches, err := s.ListMatches(ctx, ref.CompetitionID, ref.SeasonID)
	if err != nil {
		return nil, err
	}
	var info *Info
	for i := range matches {
		if matches[i].MatchID == ref.MatchID {
			in := matches[i].Info()
			info = &in
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("match %d in %d/%d: %w", ref.MatchID, ref.CompetitionID, ref.SeasonID, ErrNotFound)
	}

	events, err := s.Events(ctx, ref.MatchID)
	if err != nil {
		return nil, err
	}
	lineups, err := s.Lineups(ctx, ref.MatchID)
	if err != nil {
		return nil, err
	}

	ds, err := NewDataset(*info, events, lineups)
	if err != nil {
		return nil, err
	}
	s.logger.Info("match dataset built",
		zap.Int("match_id", ref.MatchID),
		zap.String("match", info.Context()),
		zap.Int("events", len(events)))
	return ds, nil
}

// get decodes the document at path into v, going through the cache.
func (s *StatsBomb) get(ctx context.Context, path string, v any) error {
	if body, ok, err := s.cache.Get(ctx, path); err != nil {
		s.logger.Warn("cache read failed", zap.String("path", path), zap.Error(err))
	} else if ok {
		if err := json.Unmarshal(body, v); err == nil {
			return nil
		}
		s.logger.Warn("discarding undecodable cache entry", zap.String("path", path))
	}

	body, err := s.download(ctx, path)
	if err != nil {
		return fmt.Errorf("fetch %s: %w: %w", path, ErrDataUnavailable, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, ErrDataUnavailable, err)
	}
	if err := s.cache.Set(ctx, path, body, s.ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
	return nil
}

func (s *StatsBomb) download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	s.logger.Debug("downloaded", zap.String("path", path), zap.Int("bytes", len(body)))
	return body, nil
}
