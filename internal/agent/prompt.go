package agent

import (
	"strings"
)

// DefaultLanguage is used when no response language is configured.
const DefaultLanguage = "English"

// Prompt is the instruction template for one match. The context, tool
// catalog and language are fixed at construction; Render fills in the
// question and the scratchpad of previous steps.
type Prompt struct {
	head   string
	format string
}

// NewPrompt assembles the template for matchContext and the tools in reg.
func NewPrompt(matchContext string, reg *ToolRegistry, language string) *Prompt {
	if language == "" {
		language = DefaultLanguage
	}

	var catalogLines []string
	for _, t := range reg.Tools() {
		catalogLines = append(catalogLines, t.Name+": "+t.Description)
	}

	var b strings.Builder
	b.WriteString("You are a football analyst analyzing the following match:\n")
	b.WriteString(matchContext)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Use the available tools to analyze the match data\n")
	b.WriteString(`2. Always use "` + Placeholder + `" as Action Input` + "\n")
	b.WriteString("3. The returned data will be in JSON format\n")
	b.WriteString("4. Analyze the JSON data carefully before responding, never invent facts that are not in it\n")
	b.WriteString("5. Always respond in clear and objective " + language + "\n")
	b.WriteString("\nAvailable tools:\n")
	b.WriteString(strings.Join(catalogLines, "\n"))
	b.WriteString("\n\nFollow this format EXACTLY:\n\nQuestion: ")

	var f strings.Builder
	f.WriteString("\nThought: [your reasoning in " + language + "]\n")
	f.WriteString("Action: [one of the options: " + strings.Join(reg.Names(), ", ") + "]\n")
	f.WriteString("Action Input: " + Placeholder + "\n")
	f.WriteString("Observation: [result]\n")
	f.WriteString("... (Thought/Action/Action Input/Observation can repeat)\n")
	f.WriteString("Thought: [analysis of the result in " + language + "]\n")
	f.WriteString("Final Answer: [final answer in " + language + "]\n")
	f.WriteString("\nCurrent question:\n")

	return &Prompt{head: b.String(), format: f.String()}
}

// Render returns the full prompt text for one model call.
func (p *Prompt) Render(question, scratchpad string) string {
	return p.head + question + p.format + question + "\n\n" + scratchpad
}
