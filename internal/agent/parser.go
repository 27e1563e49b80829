package agent

import (
	"fmt"
	"strings"
)

const (
	markerThought     = "Thought:"
	markerAction      = "Action:"
	markerActionInput = "Action Input:"
	markerObservation = "Observation:"
	markerFinal       = "Final Answer:"
)

// decision is what one model reply asks the loop to do next.
type decision struct {
	thought     string
	tool        ToolID
	action      string
	actionInput string
	final       string
	done        bool
}

// parseError is a reply the loop can recover from. observation is fed back
// to the model as the result of the failed step.
type parseError struct {
	action      string
	observation string
}

func (e *parseError) Error() string { return e.observation }

// parseReply reads a reply line by line. Anything after a model-written
// Observation line is ignored, since observations only come from tools.
// "Final Answer:" is recognised anywhere in a line; text before it on the
// same line is kept as thought.
func parseReply(text string, reg *ToolRegistry) (decision, error) {
	var (
		d                     decision
		thought               []string
		haveAction, haveInput bool
		haveFinal             bool
		inputBeforeAction     bool
	)

	lines := strings.Split(text, "\n")
scan:
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, markerObservation):
			break scan
		case strings.Contains(line, markerFinal) &&
			!strings.HasPrefix(line, markerAction) && !strings.HasPrefix(line, markerActionInput):
			idx := strings.Index(line, markerFinal)
			if before := strings.TrimSpace(line[:idx]); before != "" && !haveAction {
				thought = append(thought, strings.TrimPrefix(before, markerThought))
			}
			rest := line[idx+len(markerFinal):]
			if i+1 < len(lines) {
				rest += "\n" + strings.Join(lines[i+1:], "\n")
			}
			d.final = strings.TrimSpace(rest)
			haveFinal = true
			break scan
		case strings.HasPrefix(line, markerActionInput):
			if !haveAction {
				inputBeforeAction = true
				continue
			}
			if !haveInput {
				d.actionInput = strings.TrimSpace(strings.TrimPrefix(line, markerActionInput))
				haveInput = true
			}
		case strings.HasPrefix(line, markerAction):
			if haveAction {
				continue
			}
			d.action = strings.TrimSpace(strings.TrimPrefix(line, markerAction))
			haveAction = true
		case !haveAction:
			thought = append(thought, strings.TrimPrefix(line, markerThought))
		}
	}
	d.thought = strings.TrimSpace(strings.Join(thought, "\n"))

	switch {
	case haveFinal && haveAction:
		return d, &parseError{
			action:      d.action,
			observation: "Invalid Format: reply contains both an Action and a Final Answer. Give only one of them.",
		}
	case haveFinal:
		d.done = true
		return d, nil
	case inputBeforeAction:
		return d, &parseError{observation: "Invalid Format: 'Action Input:' must come after 'Action:'."}
	case !haveAction:
		return d, &parseError{observation: "Invalid Format: missing 'Action:' after 'Thought:'. Reply with an Action or a Final Answer."}
	case !haveInput:
		return d, &parseError{
			action:      d.action,
			observation: "Invalid Format: missing 'Action Input:' after 'Action:'.",
		}
	}

	id, ok := reg.Lookup(d.action)
	if !ok {
		return d, &parseError{
			action:      d.action,
			observation: fmt.Sprintf("%s is not a valid tool, try one of [%s].", d.action, strings.Join(reg.Names(), ", ")),
		}
	}
	d.tool = id
	return d, nil
}
