package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tekmindlabs/aivy-go-sdk/core"
	"github.com/tekmindlabs/aivy-go-sdk/fault"
	"github.com/tekmindlabs/aivy-go-sdk/memory"
)

// Known label prefixes stripped from plan segments.
var planPrefixes = []string{"Understanding: ", "Supportive Action: ", "Expected Impact: "}

// plan issues one planning call and parses the reply into a step.
func (e *Engine) plan(ctx context.Context, stepLabel string, priorSteps int, state core.EmotionalState, memories []memory.Record) (core.ReActStep, error) {
	const op = "engine.plan"

	raw, err := e.generator.GenerateContent(ctx, planPrompt(stepLabel, priorSteps, state, memories))
	if err != nil {
		return core.ReActStep{}, fault.Wrap(fault.KindInfrastructure, op, err)
	}
	return ParsePlan(raw)
}

// planPrompt embeds the emotional state, prior interaction count, memory
// excerpts, and the companion guideline block.
func planPrompt(stepLabel string, priorSteps int, state core.EmotionalState, memories []memory.Record) string {
	var excerpts strings.Builder
	for _, m := range memories {
		mood := m.EmotionalState.Mood
		if mood == "" {
			mood = "Unknown"
		}
		fmt.Fprintf(&excerpts, "- %s (Emotional State: %s)\n", m.Content, mood)
	}

	return fmt.Sprintf(`As an empathetic AI companion:

Current Context:
- Emotional State: %s
- Connection Level: %s
- Conversation History: %d interactions

Previous Interactions & Patterns:
%s
Companion Guidelines:
1. Show genuine empathy and understanding
2. Maintain consistent emotional support
3. Remember personal details and preferences
4. Adapt communication style to user needs
5. Encourage positive growth and well-being

Current Situation: %s

Provide:
1. Your understanding and emotional response
2. Planned supportive action
3. Expected impact on user's well-being`,
		state.Mood, state.Confidence, priorSteps, excerpts.String(), stepLabel)
}

// ParsePlan splits a planning reply on blank-line paragraph breaks into
// thought, action, and observation, stripping known label prefixes.
// Fewer than three paragraphs is a planning fault: synthesis depends on
// a well-formed step and there is no silent default.
func ParsePlan(text string) (core.ReActStep, error) {
	const op = "engine.ParsePlan"

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) < 3 {
		return core.ReActStep{}, fault.Planning(op, "plan has %d paragraphs, want 3", len(paragraphs))
	}

	return core.ReActStep{
		Thought:     stripPlanPrefix(paragraphs[0]),
		Action:      stripPlanPrefix(paragraphs[1]),
		Observation: stripPlanPrefix(paragraphs[2]),
	}, nil
}

func stripPlanPrefix(s string) string {
	for _, prefix := range planPrefixes {
		s = strings.Replace(s, prefix, "", 1)
	}
	return strings.TrimSpace(s)
}
