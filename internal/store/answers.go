package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/pitchside/internal/agent"
)

// Answer is one answered question with its reasoning trace.
type Answer struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	MatchID    int           `json:"match_id"`
	Question   string        `json:"question"`
	Output     string        `json:"output"`
	Outcome    agent.Outcome `json:"outcome"`
	Iterations int           `json:"iterations"`
	Steps      []agent.Step  `json:"intermediate_steps"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SaveAnswer inserts a. ID and CreatedAt are filled in when empty.
func (s *Store) SaveAnswer(ctx context.Context, a *Answer) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	steps := a.Steps
	if steps == nil {
		steps = []agent.Step{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO answers (id, session_id, match_id, question, output, outcome, iterations, steps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SessionID, a.MatchID, a.Question, a.Output, string(a.Outcome), a.Iterations, stepsJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// ListAnswers returns the most recent answers for a match, newest first.
func (s *Store) ListAnswers(ctx context.Context, matchID, limit int) ([]*Answer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, match_id, question, output, outcome, iterations, steps, created_at
		FROM answers
		WHERE match_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, matchID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := []*Answer{}
	for rows.Next() {
		var (
			a         Answer
			id        uuid.UUID
			outcome   string
			stepsJSON []byte
		)
		if err := rows.Scan(&id, &a.SessionID, &a.MatchID, &a.Question, &a.Output,
			&outcome, &a.Iterations, &stepsJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.ID = id.String()
		a.Outcome = agent.Outcome(outcome)
		if err := json.Unmarshal(stepsJSON, &a.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}
