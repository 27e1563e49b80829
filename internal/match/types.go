// Package match fetches match data from the StatsBomb open-data repository
// and reshapes it into the views the analysis tools and narrator consume.
package match

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable wraps every failure to fetch or decode a match view.
	ErrDataUnavailable = errors.New("match data unavailable")
	// ErrNotFound is returned when a match is absent from its season listing.
	ErrNotFound = fmt.Errorf("%w: match not found", ErrDataUnavailable)
)

// Ref identifies a match within the provider's competition/season catalog.
type Ref struct {
	CompetitionID int `json:"competition_id"`
	SeasonID      int `json:"season_id"`
	MatchID       int `json:"match_id"`
}

// DataProvider returns the full dataset for one match.
type DataProvider interface {
	Fetch(ctx context.Context, ref Ref) (*Dataset, error)
}

// Catalog lists what can be fetched.
type Catalog interface {
	ListCompetitions(ctx context.Context) ([]Competition, error)
	ListMatches(ctx context.Context, competitionID, seasonID int) ([]Summary, error)
}

// Competition is one competition season.
type Competition struct {
	CompetitionID   int    `json:"competition_id"`
	SeasonID        int    `json:"season_id"`
	CountryName     string `json:"country_name"`
	CompetitionName string `json:"competition_name"`
	Gender          string `json:"competition_gender"`
	SeasonName      string `json:"season_name"`
}

// Summary is a match as listed in matches/{competition}/{season}.json.
type Summary struct {
	MatchID     int    `json:"match_id"`
	MatchDate   string `json:"match_date"`
	KickOff     string `json:"kick_off"`
	Competition struct {
		CompetitionID   int    `json:"competition_id"`
		CompetitionName string `json:"competition_name"`
		CountryName     string `json:"country_name"`
	} `json:"competition"`
	Season struct {
		SeasonID   int    `json:"season_id"`
		SeasonName string `json:"season_name"`
	} `json:"season"`
	HomeTeam struct {
		ID   int    `json:"home_team_id"`
		Name string `json:"home_team_name"`
	} `json:"home_team"`
	AwayTeam struct {
		ID   int    `json:"away_team_id"`
		Name string `json:"away_team_name"`
	} `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Stadium   *named `json:"stadium,omitempty"`
	Referee   *named `json:"referee,omitempty"`
	Stage     *named `json:"competition_stage,omitempty"`
}

// Info converts a listing entry into the match-info view.
func (s *Summary) Info() Info {
	info := Info{
		MatchID:         s.MatchID,
		CompetitionName: s.Competition.CompetitionName,
		SeasonName:      s.Season.SeasonName,
		MatchDate:       s.MatchDate,
		KickOff:         s.KickOff,
		HomeTeamName:    s.HomeTeam.Name,
		AwayTeamName:    s.AwayTeam.Name,
		HomeScore:       s.HomeScore,
		AwayScore:       s.AwayScore,
	}
	if s.Stadium != nil {
		info.StadiumName = s.Stadium.Name
	}
	if s.Referee != nil {
		info.RefereeName = s.Referee.Name
	}
	if s.Stage != nil {
		info.CompetitionStage = s.Stage.Name
	}
	return info
}

// Info is the general metadata of a match.
type Info struct {
	MatchID          int    `json:"match_id,omitempty"`
	CompetitionName  string `json:"competition_name"`
	SeasonName       string `json:"season_name,omitempty"`
	CompetitionStage string `json:"competition_stage,omitempty"`
	MatchDate        string `json:"match_date"`
	KickOff          string `json:"kick_off,omitempty"`
	HomeTeamName     string `json:"home_team_name"`
	AwayTeamName     string `json:"away_team_name"`
	HomeScore        int    `json:"home_score"`
	AwayScore        int    `json:"away_score"`
	StadiumName      string `json:"stadium_name"`
	RefereeName      string `json:"referee_name,omitempty"`
}

// Context is the short description handed to the reasoning loop.
func (i Info) Context() string {
	return fmt.Sprintf("%s vs %s (%s)", i.HomeTeamName, i.AwayTeamName, i.MatchDate)
}

// Result renders the final score line, e.g. "Turkey 0 x 3 Italy".
func (i Info) Result() string {
	return fmt.Sprintf("%s %d x %d %s", i.HomeTeamName, i.HomeScore, i.AwayScore, i.AwayTeamName)
}

type named struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
}

// Event is one entry of events/{match}.json. Only the attributes the
// reshaping code reads are decoded.
type Event struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Period    int       `json:"period"`
	Timestamp string    `json:"timestamp"`
	Minute    int       `json:"minute"`
	Second    int       `json:"second"`
	Type      named     `json:"type"`
	Team      named     `json:"team"`
	Player    *named    `json:"player,omitempty"`
	Position  *named    `json:"position,omitempty"`
	Location  []float64 `json:"location,omitempty"`
	Tactics   *Tactics  `json:"tactics,omitempty"`
	Pass      *Pass     `json:"pass,omitempty"`
	Shot      *Shot     `json:"shot,omitempty"`
	Dribble   *outcomed `json:"dribble,omitempty"`
	Duel      *Duel     `json:"duel,omitempty"`
	Foul      *carded   `json:"foul_committed,omitempty"`
	Behaviour *carded   `json:"bad_behaviour,omitempty"`
	Intercept *outcomed `json:"interception,omitempty"`
}

// Tactics is attached to Starting XI and Tactical Shift events.
type Tactics struct {
	Formation int `json:"formation"`
	Lineup    []struct {
		Player       named `json:"player"`
		Position     named `json:"position"`
		JerseyNumber int   `json:"jersey_number"`
	} `json:"lineup"`
}

// Pass attributes. A nil Outcome means the pass was completed.
type Pass struct {
	Recipient   *named    `json:"recipient,omitempty"`
	EndLocation []float64 `json:"end_location"`
	Outcome     *named    `json:"outcome,omitempty"`
}

// Shot attributes.
type Shot struct {
	Outcome     *named    `json:"outcome,omitempty"`
	Type        *named    `json:"type,omitempty"`
	XG          float64   `json:"statsbomb_xg"`
	EndLocation []float64 `json:"end_location,omitempty"`
}

// Duel attributes; tackles are duels of type "Tackle".
type Duel struct {
	Type    *named `json:"type,omitempty"`
	Outcome *named `json:"outcome,omitempty"`
}

type outcomed struct {
	Outcome *named `json:"outcome,omitempty"`
}

type carded struct {
	Card *named `json:"card,omitempty"`
}

// PlayerName returns the acting player's name, or "" for team events.
func (e *Event) PlayerName() string {
	if e.Player == nil {
		return ""
	}
	return e.Player.Name
}

// Outcome returns the most specific outcome recorded on the event.
func (e *Event) Outcome() string {
	switch {
	case e.Pass != nil:
		if e.Pass.Outcome == nil {
			return "Complete"
		}
		return e.Pass.Outcome.Name
	case e.Shot != nil && e.Shot.Outcome != nil:
		return e.Shot.Outcome.Name
	case e.Dribble != nil && e.Dribble.Outcome != nil:
		return e.Dribble.Outcome.Name
	case e.Duel != nil && e.Duel.Outcome != nil:
		return e.Duel.Outcome.Name
	case e.Intercept != nil && e.Intercept.Outcome != nil:
		return e.Intercept.Outcome.Name
	case e.Foul != nil && e.Foul.Card != nil:
		return e.Foul.Card.Name
	case e.Behaviour != nil && e.Behaviour.Card != nil:
		return e.Behaviour.Card.Name
	}
	return ""
}

// TeamLineup is one entry of lineups/{match}.json.
type TeamLineup struct {
	TeamID   int    `json:"team_id"`
	TeamName string `json:"team_name"`
	Lineup   []struct {
		PlayerID     int     `json:"player_id"`
		PlayerName   string  `json:"player_name"`
		Nickname     *string `json:"player_nickname"`
		JerseyNumber int     `json:"jersey_number"`
		Country      *named  `json:"country,omitempty"`
		Positions    []struct {
			Position    string `json:"position"`
			From        string `json:"from"`
			StartReason string `json:"start_reason"`
		} `json:"positions"`
	} `json:"lineup"`
}
