// Package agent answers free-text questions about a match with a bounded
// Thought/Action/Observation loop over four read-only lookups.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/pitchside/internal/provider"
	"go.uber.org/zap"
)

// ErrTransport wraps failures of the text-generation service.
var ErrTransport = errors.New("text generation failed")

// DefaultMaxIterations caps the action/observation cycles of a run.
const DefaultMaxIterations = 3

// BudgetMessage is the output of a run that stopped at the cap before the
// model wrote any thought.
const BudgetMessage = "Agent stopped due to iteration limit."

// stopSequence keeps the model from writing its own observations.
const stopSequence = "\n" + markerObservation

// Config controls the loop and its model calls. A nil Temperature leaves
// the provider default. IdleTimeout only applies to Sessions.
type Config struct {
	Model         string
	Temperature   *float64
	MaxTokens     int
	MaxIterations int
	Language      string
	IdleTimeout   time.Duration
}

// Executor runs the loop for one tool registry.
type Executor struct {
	gen    provider.Generator
	tools  *ToolRegistry
	cfg    Config
	logger *zap.Logger
}

// NewExecutor creates an executor. Zero config values take their defaults.
func NewExecutor(gen provider.Generator, tools *ToolRegistry, cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Executor{gen: gen, tools: tools, cfg: cfg, logger: logger}
}

// Tools returns the executor's tool registry.
func (e *Executor) Tools() *ToolRegistry { return e.tools }

// Run answers question. Malformed replies and the iteration cap are handled
// inside the loop; only text-generation failures are returned as errors.
func (e *Executor) Run(ctx context.Context, question, matchContext string) (*Result, error) {
	res := &Result{
		Steps:     []Step{},
		StartedAt: time.Now(),
	}
	prompt := NewPrompt(matchContext, e.tools, e.cfg.Language)
	sampling := provider.SamplingConfig{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Stop:        []string{stopSequence},
	}

	var (
		scratchpad  strings.Builder
		lastThought string
	)
	for res.Iterations < e.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := e.gen.Generate(ctx, prompt.Render(question, scratchpad.String()), sampling)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		res.Iterations++

		d, err := parseReply(reply, e.tools)
		if d.thought != "" {
			lastThought = d.thought
		}

		var step Step
		var perr *parseError
		switch {
		case errors.As(err, &perr):
			step = Step{
				Action:      perr.action,
				ActionInput: d.actionInput,
				Log:         reply,
				Observation: perr.observation,
				Invalid:     true,
			}
			e.logger.Debug("unparseable reply",
				zap.Int("iteration", res.Iterations),
				zap.String("observation", perr.observation))
		case d.done:
			res.Output = d.final
			res.Outcome = OutcomeFinalAnswer
			res.Duration = time.Since(res.StartedAt)
			e.logger.Debug("final answer",
				zap.Int("iterations", res.Iterations),
				zap.Int("steps", len(res.Steps)))
			return res, nil
		default:
			step = Step{
				Action:      d.action,
				ActionInput: d.actionInput,
				Log:         reply,
				Observation: e.tools.Invoke(d.tool, d.actionInput),
			}
			e.logger.Debug("tool step",
				zap.Int("iteration", res.Iterations),
				zap.String("tool", d.action))
		}

		step.Timestamp = time.Now()
		res.Steps = append(res.Steps, step)
		scratchpad.WriteString(reply)
		scratchpad.WriteString("\n" + markerObservation + " " + step.Observation + "\n" + markerThought + " ")
	}

	res.Outcome = OutcomeBudgetExceeded
	res.Output = lastThought
	if res.Output == "" {
		res.Output = BudgetMessage
	}
	res.Duration = time.Since(res.StartedAt)
	e.logger.Info("iteration budget exhausted",
		zap.Int("iterations", res.Iterations),
		zap.Int("max_iterations", e.cfg.MaxIterations))
	return res, nil
}
