package agent

import (
	"bytes"
	"encoding/json"

	"github.com/nidhogg/pitchside/internal/match"
)

// ToolID enumerates the lookups bound to a match.
type ToolID int

const (
	ToolMatchInfo ToolID = iota
	ToolMatchEvents
	ToolPlayerStats
	ToolTeamLineups
)

// Placeholder is the Action Input the model is told to send. Tools ignore it.
const Placeholder = "get_data"

// Tool describes one lookup as it appears in the prompt catalog.
type Tool struct {
	ID          ToolID `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = [...]Tool{
	{ToolMatchInfo, "Match Info", "Returns general match information such as score, teams, and date"},
	{ToolMatchEvents, "Match Events", "Returns match events including goals, shots, and other occurrences"},
	{ToolPlayerStats, "Player Stats", "Returns detailed statistics for all players in the match"},
	{ToolTeamLineups, "Team Lineups", "Returns the starting lineups and formations for both teams"},
}

func (id ToolID) String() string {
	if id < 0 || int(id) >= len(catalog) {
		return "unknown"
	}
	return catalog[id].Name
}

// ToolHandler returns the tool output for an input it does not interpret.
type ToolHandler func(input string) string

// ToolRegistry holds the four lookups over one dataset.
type ToolRegistry struct {
	defs     []Tool
	handlers map[ToolID]ToolHandler
	byName   map[string]ToolID
}

// NewToolRegistry binds the tools to ds. Outputs are rendered once, so every
// invocation returns the same text.
func NewToolRegistry(ds *match.Dataset) *ToolRegistry {
	r := &ToolRegistry{
		handlers: make(map[ToolID]ToolHandler, len(catalog)),
		byName:   make(map[string]ToolID, len(catalog)),
	}
	var info, events, stats, lineups string
	if ds != nil {
		info = renderInfo(ds.Info)
		events, stats, lineups = ds.Events, ds.PlayerStats, ds.Lineups
	}
	r.register(catalog[ToolMatchInfo], constant(info))
	r.register(catalog[ToolMatchEvents], constant(events))
	r.register(catalog[ToolPlayerStats], constant(stats))
	r.register(catalog[ToolTeamLineups], constant(lineups))
	return r
}

func (r *ToolRegistry) register(def Tool, h ToolHandler) {
	r.defs = append(r.defs, def)
	r.handlers[def.ID] = h
	r.byName[def.Name] = def.ID
}

// Tools returns the tool definitions in catalog order.
func (r *ToolRegistry) Tools() []Tool {
	out := make([]Tool, len(r.defs))
	copy(out, r.defs)
	return out
}

// Names returns the tool names in catalog order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Lookup resolves an exact, case-sensitive tool name.
func (r *ToolRegistry) Lookup(name string) (ToolID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Invoke runs a tool. Unknown IDs yield an empty string.
func (r *ToolRegistry) Invoke(id ToolID, input string) string {
	h, ok := r.handlers[id]
	if !ok {
		return ""
	}
	return h(input)
}

func constant(s string) ToolHandler {
	return func(string) string { return s }
}

// renderInfo indents the info mapping and keeps accented names readable.
func renderInfo(info match.Info) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
