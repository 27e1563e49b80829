package match

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/pitchside/internal/cache"
	"go.uber.org/zap"
)

func newFixtureServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	files := http.FileServer(http.Dir("testdata"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T, baseURL string) *StatsBomb {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return NewStatsBomb(StatsBombConfig{BaseURL: baseURL, CacheTTL: time.Hour}, c, zap.NewNop())
}

func TestStatsBombFetch(t *testing.T) {
	srv, _ := newFixtureServer(t)
	sb := newTestClient(t, srv.URL)

	ds, err := sb.Fetch(context.Background(), Ref{CompetitionID: 55, SeasonID: 43, MatchID: 100})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if got := ds.Info.Result(); got != "Home FC 2 x 1 Away FC" {
		t.Errorf("result = %q", got)
	}
	if got := ds.Info.Context(); got != "Home FC vs Away FC (2024-05-01)" {
		t.Errorf("context = %q", got)
	}
	if ds.Info.StadiumName != "Estádio Central" || ds.Info.CompetitionStage != "Group Stage" {
		t.Errorf("info = %+v", ds.Info)
	}
	if len(ds.Timeline()) != 15 {
		t.Errorf("timeline has %d events", len(ds.Timeline()))
	}

	var events []EventSummary
	if err := json.Unmarshal([]byte(ds.Events), &events); err != nil {
		t.Fatalf("events view is not JSON: %v", err)
	}
	if events[4].Type != "Shot" || events[4].Outcome != "Goal" {
		t.Errorf("events[4] = %+v", events[4])
	}
	if events[2].Outcome != "Complete" {
		t.Errorf("completed pass outcome = %q", events[2].Outcome)
	}

	var profiles []Profile
	if err := json.Unmarshal([]byte(ds.PlayerStats), &profiles); err != nil {
		t.Fatalf("player stats view is not JSON: %v", err)
	}
	if len(profiles) != 3 {
		t.Errorf("got %d profiles", len(profiles))
	}

	var sheets []TeamSheet
	if err := json.Unmarshal([]byte(ds.Lineups), &sheets); err != nil {
		t.Fatalf("lineups view is not JSON: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("got %d team sheets", len(sheets))
	}
	home := sheets[0]
	if home.Formation != "433" {
		t.Errorf("home formation = %q", home.Formation)
	}
	if len(home.StartingXI) != 1 || home.StartingXI[0].Name != "Ana" {
		t.Errorf("home starting xi = %+v", home.StartingXI)
	}
	if len(home.Substitutes) != 1 || home.Substitutes[0].Nickname != "Bia" {
		t.Errorf("home substitutes = %+v", home.Substitutes)
	}
	if strings.Contains(ds.Lineups, `\u00`) {
		t.Error("lineups view should not escape non-ASCII characters")
	}
}

func TestStatsBombCachesDocuments(t *testing.T) {
	srv, hits := newFixtureServer(t)
	sb := newTestClient(t, srv.URL)
	ref := Ref{CompetitionID: 55, SeasonID: 43, MatchID: 100}

	if _, err := sb.Fetch(context.Background(), ref); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	first := hits.Load()
	if first != 3 {
		t.Errorf("first fetch made %d requests, want 3", first)
	}
	if _, err := sb.Fetch(context.Background(), ref); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits.Load() != first {
		t.Errorf("second fetch went to the network (%d requests)", hits.Load()-first)
	}
}

func TestStatsBombUnknownMatch(t *testing.T) {
	srv, _ := newFixtureServer(t)
	sb := newTestClient(t, srv.URL)

	_, err := sb.Fetch(context.Background(), Ref{CompetitionID: 55, SeasonID: 43, MatchID: 999})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("ErrNotFound must also be ErrDataUnavailable: %v", err)
	}
}

func TestStatsBombUnknownSeason(t *testing.T) {
	srv, _ := newFixtureServer(t)
	sb := newTestClient(t, srv.URL)

	_, err := sb.ListMatches(context.Background(), 1, 1)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestStatsBombServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	sb := newTestClient(t, srv.URL)

	_, err := sb.ListCompetitions(context.Background())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("a 502 is not a missing match")
	}
}

func TestStatsBombListCompetitions(t *testing.T) {
	srv, _ := newFixtureServer(t)
	sb := newTestClient(t, srv.URL)

	comps, err := sb.ListCompetitions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comps) != 1 || comps[0].CompetitionName != "UEFA Euro" || comps[0].SeasonID != 43 {
		t.Errorf("competitions = %+v", comps)
	}
}
