package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/pitchside/internal/agent"
	"github.com/nidhogg/pitchside/internal/cache"
	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/narration"
	"github.com/nidhogg/pitchside/internal/provider"
	"github.com/nidhogg/pitchside/internal/store"
	"go.uber.org/zap"
)

// fakeGenerator answers narration prompts with a fixed text and agent
// prompts from a script.
type fakeGenerator struct {
	mu      sync.Mutex
	script  []string
	calls   int
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ provider.SamplingConfig) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if strings.HasPrefix(prompt, "Write an engaging") {
		return "Que jogo!", nil
	}
	if g.calls >= len(g.script) {
		return "Final Answer: no more script", nil
	}
	g.calls++
	return g.script[g.calls-1], nil
}

func (g *fakeGenerator) setScript(replies ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = replies
}

func (g *fakeGenerator) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// memHistory keeps history rows in memory.
type memHistory struct {
	mu         sync.Mutex
	answers    []*store.Answer
	narrations []*store.Narration
}

func (m *memHistory) SaveAnswer(_ context.Context, a *store.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = "a" + string(rune('0'+len(m.answers)))
	a.CreatedAt = time.Now()
	m.answers = append(m.answers, a)
	return nil
}

func (m *memHistory) ListAnswers(_ context.Context, matchID, _ int) ([]*store.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*store.Answer{}
	for _, a := range m.answers {
		if a.MatchID == matchID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memHistory) SaveNarration(_ context.Context, n *store.Narration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.narrations = append(m.narrations, n)
	return nil
}

func (m *memHistory) ListNarrations(_ context.Context, matchID, _ int) ([]*store.Narration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*store.Narration{}
	for _, n := range m.narrations {
		if n.MatchID == matchID {
			out = append(out, n)
		}
	}
	return out, nil
}

type testEnv struct {
	ts      *httptest.Server
	gen     *fakeGenerator
	history *memHistory
}

// newTestEnv serves the match fixtures over HTTP and wires the real
// StatsBomb client, sessions and narrator around a scripted generator.
func newTestEnv(t *testing.T, withHistory bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	data := httptest.NewServer(http.FileServer(http.Dir("../match/testdata")))
	t.Cleanup(data.Close)
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	sb := match.NewStatsBomb(match.StatsBombConfig{BaseURL: data.URL, CacheTTL: time.Hour}, mem, logger)

	gen := &fakeGenerator{}
	sessions := agent.NewSessions(sb, gen, agent.Config{Temperature: provider.Float64(0.1)}, logger)
	narrator := narration.New(gen, narration.DefaultConfig(), logger)

	env := &testEnv{gen: gen}
	var history History
	if withHistory {
		env.history = &memHistory{}
		history = env.history
	}
	h := NewHandler(sessions, sb, narrator, history, logger)
	env.ts = httptest.NewServer(h.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func doJSON(t *testing.T, method, target string, body interface{}) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body bytes.Buffer
		body.ReadFrom(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body.String())
	}
}

// openWithMatch opens a session and selects the fixture match.
func (e *testEnv) openWithMatch(t *testing.T) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, e.ts.URL+"/api/sessions", nil)
	expectStatus(t, resp, http.StatusCreated)
	var opened map[string]string
	decodeJSON(t, resp, &opened)
	key := opened["session_id"]
	if key == "" {
		t.Fatal("empty session id")
	}

	resp = doJSON(t, http.MethodPut, e.ts.URL+"/api/sessions/"+key+"/match",
		match.Ref{CompetitionID: 55, SeasonID: 43, MatchID: 100})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	return key
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, false)
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/health", nil)
	expectStatus(t, resp, http.StatusOK)
	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" || body["history"] != false {
		t.Errorf("health = %v", body)
	}
}

// stubProvider is a provider whose health is fixed.
type stubProvider struct {
	id  string
	err error
}

func (p *stubProvider) ID() string   { return p.id }
func (p *stubProvider) Name() string { return "stub " + p.id }
func (p *stubProvider) Chat(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	return nil, errors.New("not used")
}
func (p *stubProvider) HealthCheck(context.Context) error { return p.err }

func newProviderServer(t *testing.T, providers ...provider.Provider) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	router := provider.NewRouter(logger)
	for _, p := range providers {
		router.Register(p)
	}
	if len(providers) > 0 {
		router.SetDefault(providers[len(providers)-1].ID())
	}
	h := NewHandler(agent.NewSessions(nil, nil, agent.Config{}, logger), nil, nil, nil, logger)
	h.SetProviders(router)
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return ts
}

type providerHealthBody struct {
	Providers []struct {
		ID      string `json:"id"`
		Default bool   `json:"default"`
		Healthy bool   `json:"healthy"`
		Error   string `json:"error"`
	} `json:"providers"`
}

func TestProviderHealth(t *testing.T) {
	ts := newProviderServer(t,
		&stubProvider{id: "openai", err: errors.New("list models: status 401")},
		&stubProvider{id: "gemini"},
	)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health/providers", nil)
	expectStatus(t, resp, http.StatusOK)
	var body providerHealthBody
	decodeJSON(t, resp, &body)
	if len(body.Providers) != 2 {
		t.Fatalf("providers = %+v", body.Providers)
	}
	gem, oa := body.Providers[0], body.Providers[1]
	if gem.ID != "gemini" || !gem.Healthy || !gem.Default || gem.Error != "" {
		t.Errorf("gemini = %+v", gem)
	}
	if oa.ID != "openai" || oa.Healthy || oa.Default || !strings.Contains(oa.Error, "401") {
		t.Errorf("openai = %+v", oa)
	}
}

func TestProviderHealthAllDown(t *testing.T) {
	ts := newProviderServer(t, &stubProvider{id: "gemini", err: errors.New("unreachable")})
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health/providers", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()

	env := newTestEnv(t, false)
	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/health/providers", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, false)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/competitions", nil)
	expectStatus(t, resp, http.StatusOK)
	var comps []match.Competition
	decodeJSON(t, resp, &comps)
	if len(comps) != 1 || comps[0].CompetitionID != 55 {
		t.Errorf("competitions = %+v", comps)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/competitions/55/seasons/43/matches", nil)
	expectStatus(t, resp, http.StatusOK)
	var matches []match.Info
	decodeJSON(t, resp, &matches)
	if len(matches) != 1 || matches[0].HomeTeamName != "Home FC" || matches[0].MatchID != 100 {
		t.Errorf("matches = %+v", matches)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/competitions/x/seasons/43/matches", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestSelectMatchAndOverview(t *testing.T) {
	env := newTestEnv(t, false)
	key := env.openWithMatch(t)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/overview", nil)
	expectStatus(t, resp, http.StatusOK)
	var ov overviewResponse
	decodeJSON(t, resp, &ov)
	if ov.Result != "Home FC 2 x 1 Away FC" {
		t.Errorf("result = %q", ov.Result)
	}
	if ov.Context != "Home FC vs Away FC (2024-05-01)" || ov.Info.StadiumName != "Estádio Central" {
		t.Errorf("overview = %+v", ov)
	}
}

func TestSelectMatchErrors(t *testing.T) {
	env := newTestEnv(t, false)

	resp := doJSON(t, http.MethodPut, env.ts.URL+"/api/sessions/unknown/match", match.Ref{CompetitionID: 55, SeasonID: 43, MatchID: 100})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	key := env.openWithMatch(t)
	resp = doJSON(t, http.MethodPut, env.ts.URL+"/api/sessions/"+key+"/match", match.Ref{CompetitionID: 55, SeasonID: 43, MatchID: 999})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, env.ts.URL+"/api/sessions/"+key+"/match", map[string]int{"competition_id": 55})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	// the failed switch kept the fixture match
	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/overview", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestAskRecordsAnswer(t *testing.T) {
	env := newTestEnv(t, true)
	env.gen.setScript(
		"Thought: I need the score.\nAction: Match Info\nAction Input: get_data",
		"Thought: The info has it.\nFinal Answer: Home FC 2 x 1 Away FC",
	)
	key := env.openWithMatch(t)

	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/ask", map[string]string{"question": "What was the final score?"})
	expectStatus(t, resp, http.StatusOK)
	var res agent.Result
	decodeJSON(t, resp, &res)
	if res.Output != "Home FC 2 x 1 Away FC" || res.Outcome != agent.OutcomeFinalAnswer {
		t.Errorf("result = %+v", res)
	}
	if len(res.Steps) != 1 || res.Steps[0].Action != "Match Info" {
		t.Fatalf("steps = %+v", res.Steps)
	}
	if !strings.Contains(res.Steps[0].Observation, `"stadium_name": "Estádio Central"`) {
		t.Errorf("observation = %s", res.Steps[0].Observation)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/matches/100/answers", nil)
	expectStatus(t, resp, http.StatusOK)
	var answers []store.Answer
	decodeJSON(t, resp, &answers)
	if len(answers) != 1 || answers[0].SessionID != key || answers[0].Question != "What was the final score?" {
		t.Errorf("answers = %+v", answers)
	}
}

func TestAskErrors(t *testing.T) {
	env := newTestEnv(t, false)

	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/nope/ask", map[string]string{"question": "Score?"})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions", nil)
	var opened map[string]string
	decodeJSON(t, resp, &opened)
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+opened["session_id"]+"/ask", map[string]string{"question": "Score?"})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	key := env.openWithMatch(t)
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/ask", map[string]string{"question": "   "})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	env.gen.fail(errors.New("quota exceeded"))
	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/ask", map[string]string{"question": "Score?"})
	expectStatus(t, resp, http.StatusBadGateway)
	var body map[string]string
	decodeJSON(t, resp, &body)
	if !strings.Contains(body["error"], "quota exceeded") {
		t.Errorf("error body = %v", body)
	}
}

func TestNarration(t *testing.T) {
	env := newTestEnv(t, true)
	key := env.openWithMatch(t)

	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/narration", map[string]string{"style": "Humorístico"})
	expectStatus(t, resp, http.StatusOK)
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["content"] != "Que jogo!" || body["style"] != "Humorous" {
		t.Errorf("narration = %v", body)
	}

	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/narration", map[string]string{"style": "Poetic"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/matches/100/narrations", nil)
	expectStatus(t, resp, http.StatusOK)
	var saved []store.Narration
	decodeJSON(t, resp, &saved)
	if len(saved) != 1 || saved[0].Kind != store.KindMatch || saved[0].Language != "Portuguese" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestPlayers(t *testing.T) {
	env := newTestEnv(t, false)
	key := env.openWithMatch(t)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/players", nil)
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		Teams []teamPlayers `json:"teams"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Teams) != 2 || body.Teams[0].Team != "Home FC" || len(body.Teams[0].Players) != 2 {
		t.Errorf("teams = %+v", body.Teams)
	}

	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/players/profile", map[string]string{"player": "Ana"})
	expectStatus(t, resp, http.StatusOK)
	var prof struct {
		Profile   match.Profile `json:"profile"`
		Narrative string        `json:"narrative"`
	}
	decodeJSON(t, resp, &prof)
	if prof.Profile.Shots != 3 || prof.Profile.PenaltyGoals != 1 || prof.Narrative != "Que jogo!" {
		t.Errorf("profile = %+v", prof)
	}

	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/players/profile", map[string]interface{}{"player": "Caio", "narrate": false})
	expectStatus(t, resp, http.StatusOK)
	var quiet map[string]json.RawMessage
	decodeJSON(t, resp, &quiet)
	if _, ok := quiet["narrative"]; ok {
		t.Error("narrate=false should skip the narrative")
	}

	resp = doJSON(t, http.MethodPost, env.ts.URL+"/api/sessions/"+key+"/players/profile", map[string]string{"player": "Zico"})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestPassMap(t *testing.T) {
	env := newTestEnv(t, false)
	key := env.openWithMatch(t)

	q := url.Values{"team": {"Home FC"}, "player": {"Ana"}}
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/passmap?"+q.Encode(), nil)
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		Passes []match.PassArrow `json:"passes"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Passes) != 2 || !body.Passes[0].Completed || body.Passes[1].Completed {
		t.Errorf("passes = %+v", body.Passes)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/passmap", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t, false)
	key := env.openWithMatch(t)

	resp := doJSON(t, http.MethodDelete, env.ts.URL+"/api/sessions/"+key, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/sessions/"+key+"/overview", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, env.ts.URL+"/api/sessions/"+key, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestHistoryWithoutStore(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/api/matches/100/answers", "/api/matches/100/narrations"} {
		resp := doJSON(t, http.MethodGet, env.ts.URL+path, nil)
		expectStatus(t, resp, http.StatusServiceUnavailable)
		resp.Body.Close()
	}
}
