// Package narration writes commentator-style summaries of a match and of a
// single player's performance.
package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/provider"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownStyle is returned for a style outside Formal, Humorous and Technical.
	ErrUnknownStyle = errors.New("unknown broadcast style")
	// ErrGeneration wraps failures of the text-generation service.
	ErrGeneration = errors.New("narration generation failed")
)

// Style is the broadcast tone of a match summary.
type Style string

const (
	StyleFormal    Style = "Formal"
	StyleHumorous  Style = "Humorous"
	StyleTechnical Style = "Technical"
)

var styleHints = map[Style]string{
	StyleFormal:    "technical and objective",
	StyleHumorous:  "relaxed and creative",
	StyleTechnical: "detailed analysis of the events",
}

// ParseStyle accepts a style name in any case, including the Portuguese
// labels of the original dashboard. The empty string means Formal.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "formal":
		return StyleFormal, nil
	case "humorous", "humorístico", "humoristico":
		return StyleHumorous, nil
	case "technical", "técnico", "tecnico":
		return StyleTechnical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

// Config holds the sampling parameters and output language.
type Config struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        float64
	TopK        int
	Language    string
}

// DefaultConfig matches the sampling the dashboard has always used.
func DefaultConfig() Config {
	return Config{
		Temperature: provider.Float64(0.3),
		MaxTokens:   500,
		TopP:        0.95,
		TopK:        40,
		Language:    "Portuguese",
	}
}

// Narrator turns match views into prose.
type Narrator struct {
	gen    provider.Generator
	cfg    Config
	logger *zap.Logger
}

// New creates a narrator. Zero values in cfg are taken from DefaultConfig.
func New(gen provider.Generator, cfg Config, logger *zap.Logger) *Narrator {
	def := DefaultConfig()
	if cfg.Temperature == nil {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.TopP == 0 {
		cfg.TopP = def.TopP
	}
	if cfg.TopK == 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	return &Narrator{gen: gen, cfg: cfg, logger: logger}
}

// Language returns the output language.
func (n *Narrator) Language() string { return n.cfg.Language }

// MatchSummary narrates the whole match in the given style.
func (n *Narrator) MatchSummary(ctx context.Context, ds *match.Dataset, style Style) (string, error) {
	hint, ok := styleHints[style]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	views, err := renderViews(map[string]any{
		"lineups":      ds.Lineups,
		"match_info":   ds.Info,
		"events":       ds.Events,
		"player_stats": ds.PlayerStats,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write an engaging and informative summary of the match described below, in %s, using the content of the YAML documents provided:\n", n.cfg.Language)
	fmt.Fprintf(&b, "- Lineups: %s - the lineups of both teams\n", views["lineups"])
	fmt.Fprintf(&b, "- Match Info: %s - general match information such as date, stadium, teams, score and competition name\n", views["match_info"])
	fmt.Fprintf(&b, "- Events: %s - the match events: passes, fouls committed, fouls won, interceptions, ball recoveries, dribbles and their locations\n", views["events"])
	fmt.Fprintf(&b, "- Player Stats: %s - per-player information which, together with the events, gives the overall picture of the match\n", views["player_stats"])
	fmt.Fprintf(&b, "- Broadcast Style: %s (%s) - the narration style chosen by the user\n", style, hint)
	b.WriteString(commonRules)
	b.WriteString("The summary must have at most 250 words and be written like a sports commentator, in the tone chosen by the user.\n")
	b.WriteString("Mention the match date explicitly, without words such as 'today'.\n")
	b.WriteString("Focus on the key moments of the match, without excessive detail about each player.\n")

	out, err := n.generate(ctx, b.String())
	if err != nil {
		return "", err
	}
	n.logger.Info("match narrated",
		zap.Int("match_id", ds.Info.MatchID),
		zap.String("style", string(style)),
		zap.Int("chars", len(out)))
	return out, nil
}

// PlayerProfile narrates one player's performance from their aggregated
// counts and the match events.
func (n *Narrator) PlayerProfile(ctx context.Context, ds *match.Dataset, profile match.Profile) (string, error) {
	views, err := renderViews(map[string]any{
		"player_stats": profile,
		"events":       ds.Events,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write an engaging and informative profile of the selected player, in %s, using the content of the YAML documents provided:\n", n.cfg.Language)
	fmt.Fprintf(&b, "- Player_stats: %s - the player's statistics in the match: completed passes, pass attempts, shots, shots on target, "+
		"fouls committed, fouls won, tackles, interceptions, completed dribbles, dribble attempts, non-penalty goals, penalty goals, "+
		"ball recoveries, blocks, yellow cards, red cards, injury stoppages and miscontrols\n", views["player_stats"])
	fmt.Fprintf(&b, "- Events: %s - the general events of the match, involving every player\n", views["events"])
	b.WriteString("Combine the player's statistics with the match events to draw the player's profile in the match.\n")
	b.WriteString(commonRules)
	b.WriteString("The summary must have at most 250 words and be written like a sports commentator.\n")

	out, err := n.generate(ctx, b.String())
	if err != nil {
		return "", err
	}
	n.logger.Info("player narrated",
		zap.Int("match_id", ds.Info.MatchID),
		zap.String("player", profile.Player))
	return out, nil
}

const commonRules = "Use only the information provided, without assumptions or filling gaps, such as guessing the order of the match events.\n" +
	"Do not use phrases such as 'according to the data I was given' or anything similar.\n" +
	"The goal is a captivating and accessible text that highlights the main happenings and interesting aspects.\n"

func (n *Narrator) generate(ctx context.Context, prompt string) (string, error) {
	out, err := n.gen.Generate(ctx, prompt, provider.SamplingConfig{
		Model:       n.cfg.Model,
		Temperature: n.cfg.Temperature,
		MaxTokens:   n.cfg.MaxTokens,
		TopP:        n.cfg.TopP,
		TopK:        n.cfg.TopK,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return strings.TrimSpace(out), nil
}

// renderViews converts each value to YAML. Strings are treated as JSON
// documents; anything else goes through its JSON encoding first so the YAML
// keys match the API field names.
func renderViews(views map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(views))
	for name, v := range views {
		s, err := toYAML(v)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func toYAML(v any) (string, error) {
	var raw []byte
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return "", nil
		}
		raw = []byte(s)
	} else {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		raw = b
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return "\n" + string(b), nil
}
