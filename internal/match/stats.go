package match

import (
	"sort"
)

// Profile aggregates one player's events in a match.
type Profile struct {
	Player            string `json:"player"`
	Team              string `json:"team"`
	PassesCompleted   int    `json:"passes_completed"`
	PassAttempts      int    `json:"pass_attempts"`
	Shots             int    `json:"shots"`
	ShotsOnTarget     int    `json:"shots_on_target"`
	FoulsCommitted    int    `json:"fouls_committed"`
	FoulsWon          int    `json:"fouls_won"`
	Tackles           int    `json:"tackles"`
	Interceptions     int    `json:"interceptions"`
	DribblesCompleted int    `json:"dribbles_completed"`
	DribbleAttempts   int    `json:"dribble_attempts"`
	NonPenaltyGoals   int    `json:"non_penalty_goals"`
	PenaltyGoals      int    `json:"penalty_goals"`
	BallRecoveries    int    `json:"ball_recoveries"`
	Blocks            int    `json:"blocks"`
	InjuryStoppages   int    `json:"injury_stoppages"`
	Miscontrols       int    `json:"miscontrols"`
	YellowCards       int    `json:"yellow_cards"`
	RedCards          int    `json:"red_cards"`
}

// Shot outcomes that reached the goal frame.
var onTarget = map[string]bool{"Goal": true, "Saved": true, "Saved To Post": true}

// Teams returns the home and away team names. The home team is the team of
// the first Starting XI event.
func Teams(events []Event) (home, away string) {
	for i := range events {
		if events[i].Type.Name == "Starting XI" {
			home = events[i].Team.Name
			break
		}
	}
	for i := range events {
		if t := events[i].Team.Name; t != "" && t != home {
			away = t
			break
		}
	}
	return home, away
}

// Players returns the sorted, distinct names of players with at least one
// event for team. An empty team matches both sides.
func Players(events []Event, team string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range events {
		e := &events[i]
		name := e.PlayerName()
		if name == "" || seen[name] || (team != "" && e.Team.Name != team) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PlayerProfile counts player's events. The second result is false when the
// player has no events in the match.
func PlayerProfile(events []Event, player string) (Profile, bool) {
	p := Profile{Player: player}
	found := false
	for i := range events {
		e := &events[i]
		if e.PlayerName() != player {
			continue
		}
		if !found {
			p.Team = e.Team.Name
			found = true
		}
		p.add(e)
	}
	return p, found
}

// AllProfiles returns one profile per player, ordered by team then name.
func AllProfiles(events []Event) []Profile {
	byPlayer := make(map[string]*Profile)
	for i := range events {
		e := &events[i]
		name := e.PlayerName()
		if name == "" {
			continue
		}
		p, ok := byPlayer[name]
		if !ok {
			p = &Profile{Player: name, Team: e.Team.Name}
			byPlayer[name] = p
		}
		p.add(e)
	}
	out := make([]Profile, 0, len(byPlayer))
	for _, p := range byPlayer {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].Player < out[j].Player
	})
	return out
}

func (p *Profile) add(e *Event) {
	switch e.Type.Name {
	case "Pass":
		p.PassAttempts++
		if e.Pass == nil || e.Pass.Outcome == nil {
			p.PassesCompleted++
		}
	case "Shot":
		p.Shots++
		if e.Shot == nil || e.Shot.Outcome == nil {
			break
		}
		outcome := e.Shot.Outcome.Name
		if onTarget[outcome] {
			p.ShotsOnTarget++
		}
		if outcome == "Goal" {
			if e.Shot.Type != nil && e.Shot.Type.Name == "Penalty" {
				p.PenaltyGoals++
			} else {
				p.NonPenaltyGoals++
			}
		}
	case "Foul Committed":
		p.FoulsCommitted++
		if e.Foul != nil {
			p.addCard(e.Foul.Card)
		}
	case "Bad Behaviour":
		if e.Behaviour != nil {
			p.addCard(e.Behaviour.Card)
		}
	case "Foul Won":
		p.FoulsWon++
	case "Duel":
		if e.Duel != nil && e.Duel.Type != nil && e.Duel.Type.Name == "Tackle" {
			p.Tackles++
		}
	case "Interception":
		p.Interceptions++
	case "Dribble":
		p.DribbleAttempts++
		if e.Dribble != nil && e.Dribble.Outcome != nil && e.Dribble.Outcome.Name == "Complete" {
			p.DribblesCompleted++
		}
	case "Ball Recovery":
		p.BallRecoveries++
	case "Block":
		p.Blocks++
	case "Injury Stoppage":
		p.InjuryStoppages++
	case "Miscontrol":
		p.Miscontrols++
	}
}

func (p *Profile) addCard(card *named) {
	if card == nil {
		return
	}
	switch card.Name {
	case "Yellow Card":
		p.YellowCards++
	case "Second Yellow":
		p.YellowCards++
		p.RedCards++
	case "Red Card":
		p.RedCards++
	}
}

// PassArrow is one pass drawn on the pitch, in StatsBomb coordinates
// (120x80, origin top-left).
type PassArrow struct {
	Minute    int        `json:"minute"`
	Start     [2]float64 `json:"start"`
	End       [2]float64 `json:"end"`
	Completed bool       `json:"completed"`
	Recipient string     `json:"recipient,omitempty"`
}

// PassMap returns the passes made by player for team. Passes without both
// locations are skipped.
func PassMap(events []Event, team, player string) []PassArrow {
	arrows := []PassArrow{}
	for i := range events {
		e := &events[i]
		if e.Type.Name != "Pass" || e.Pass == nil || e.PlayerName() != player {
			continue
		}
		if team != "" && e.Team.Name != team {
			continue
		}
		if len(e.Location) < 2 || len(e.Pass.EndLocation) < 2 {
			continue
		}
		a := PassArrow{
			Minute:    e.Minute,
			Start:     [2]float64{e.Location[0], e.Location[1]},
			End:       [2]float64{e.Pass.EndLocation[0], e.Pass.EndLocation[1]},
			Completed: e.Pass.Outcome == nil,
		}
		if e.Pass.Recipient != nil {
			a.Recipient = e.Pass.Recipient.Name
		}
		arrows = append(arrows, a)
	}
	return arrows
}
