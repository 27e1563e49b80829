package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Narration kinds.
const (
	KindMatch  = "match"
	KindPlayer = "player"
)

// Narration is one generated match summary or player profile.
type Narration struct {
	ID        string    `json:"id"`
	MatchID   int       `json:"match_id"`
	Kind      string    `json:"kind"`
	Style     string    `json:"style,omitempty"`
	Player    string    `json:"player,omitempty"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveNarration inserts n. ID and CreatedAt are filled in when empty.
func (s *Store) SaveNarration(ctx context.Context, n *Narration) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO narrations (id, match_id, kind, style, player, language, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.MatchID, n.Kind, n.Style, n.Player, n.Language, n.Content, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save narration: %w", err)
	}
	return nil
}

// ListNarrations returns the most recent narrations for a match, newest first.
func (s *Store) ListNarrations(ctx context.Context, matchID, limit int) ([]*Narration, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, match_id, kind, style, player, language, content, created_at
		FROM narrations
		WHERE match_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, matchID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list narrations: %w", err)
	}
	defer rows.Close()

	out := []*Narration{}
	for rows.Next() {
		var (
			n  Narration
			id uuid.UUID
		)
		if err := rows.Scan(&id, &n.MatchID, &n.Kind, &n.Style, &n.Player, &n.Language, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan narration: %w", err)
		}
		n.ID = id.String()
		out = append(out, &n)
	}
	return out, rows.Err()
}
