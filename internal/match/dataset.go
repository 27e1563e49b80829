package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Dataset holds the four views of one match. It is built once per match
// selection and never mutated afterwards.
type Dataset struct {
	Info        Info
	Events      string // chronological event log, JSON
	PlayerStats string // per-player aggregates, JSON
	Lineups     string // starting lineups and formations, JSON

	timeline []Event
}

// NewDataset builds the views from decoded provider documents.
func NewDataset(info Info, events []Event, lineups []TeamLineup) (*Dataset, error) {
	ds := &Dataset{Info: info, timeline: events}

	var err error
	if ds.Events, err = marshalView(eventLog(events)); err != nil {
		return nil, fmt.Errorf("%w: events view: %w", ErrDataUnavailable, err)
	}
	if ds.PlayerStats, err = marshalView(AllProfiles(events)); err != nil {
		return nil, fmt.Errorf("%w: player stats view: %w", ErrDataUnavailable, err)
	}
	if ds.Lineups, err = marshalView(lineupView(events, lineups)); err != nil {
		return nil, fmt.Errorf("%w: lineups view: %w", ErrDataUnavailable, err)
	}
	return ds, nil
}

// Timeline returns the decoded events the views were built from.
func (d *Dataset) Timeline() []Event { return d.timeline }

// marshalView encodes v without HTML escaping so player names with
// accents and ampersands reach the model unchanged.
func marshalView(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// EventSummary is one line of the events view.
type EventSummary struct {
	Index    int       `json:"index"`
	Period   int       `json:"period"`
	Minute   int       `json:"minute"`
	Second   int       `json:"second"`
	Type     string    `json:"type"`
	Team     string    `json:"team"`
	Player   string    `json:"player,omitempty"`
	Location []float64 `json:"location,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
}

func eventLog(events []Event) []EventSummary {
	out := make([]EventSummary, 0, len(events))
	for i := range events {
		e := &events[i]
		out = append(out, EventSummary{
			Index:    e.Index,
			Period:   e.Period,
			Minute:   e.Minute,
			Second:   e.Second,
			Type:     e.Type.Name,
			Team:     e.Team.Name,
			Player:   e.PlayerName(),
			Location: e.Location,
			Outcome:  e.Outcome(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// LineupPlayer is one player of the lineups view.
type LineupPlayer struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	Jersey   int    `json:"jersey_number"`
	Position string `json:"position,omitempty"`
	Country  string `json:"country,omitempty"`
}

// TeamSheet is one team of the lineups view.
type TeamSheet struct {
	Team        string         `json:"team"`
	Formation   string         `json:"formation,omitempty"`
	StartingXI  []LineupPlayer `json:"starting_xi"`
	Substitutes []LineupPlayer `json:"substitutes"`
}

func lineupView(events []Event, lineups []TeamLineup) []TeamSheet {
	formations := make(map[string]string)
	for i := range events {
		e := &events[i]
		if e.Type.Name == "Starting XI" && e.Tactics != nil {
			formations[e.Team.Name] = strconv.Itoa(e.Tactics.Formation)
		}
	}

	sheets := make([]TeamSheet, 0, len(lineups))
	for _, tl := range lineups {
		sheet := TeamSheet{
			Team:        tl.TeamName,
			Formation:   formations[tl.TeamName],
			StartingXI:  []LineupPlayer{},
			Substitutes: []LineupPlayer{},
		}
		for _, p := range tl.Lineup {
			lp := LineupPlayer{Name: p.PlayerName, Jersey: p.JerseyNumber}
			if p.Nickname != nil {
				lp.Nickname = *p.Nickname
			}
			if p.Country != nil {
				lp.Country = p.Country.Name
			}
			starter := false
			if len(p.Positions) > 0 {
				lp.Position = p.Positions[0].Position
				starter = p.Positions[0].StartReason == "Starting XI"
			}
			if starter {
				sheet.StartingXI = append(sheet.StartingXI, lp)
			} else {
				sheet.Substitutes = append(sheet.Substitutes, lp)
			}
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}
