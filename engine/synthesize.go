package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tekmindlabs/aivy-go-sdk/core"
	"github.com/tekmindlabs/aivy-go-sdk/fault"
	"github.com/tekmindlabs/aivy-go-sdk/memory"
)

// Profile defaults applied when the requester has no stored preference.
const (
	defaultLearningStyle = "general"
	defaultDifficulty    = "moderate"
	defaultInterests     = "general topics"
)

// streamMarker matches a leading numeric stream-chunk marker like "0:".
var streamMarker = regexp.MustCompile(`^\d+:`)

// synthesize produces the final personalized reply from the plan draft,
// memory context, and requester profile.
func (e *Engine) synthesize(ctx context.Context, userMessage string, step core.ReActStep, state core.EmotionalState, profile core.Profile, memories []memory.Record) (string, error) {
	const op = "engine.synthesize"

	raw, err := e.generator.GenerateContent(ctx, synthesisPrompt(userMessage, step, state, profile, memories))
	if err != nil {
		return "", fault.Wrap(fault.KindInfrastructure, op, err)
	}
	return NormalizeResponse(raw), nil
}

// synthesisPrompt asks for a tone-adapted rewrite of the plan grounded
// in shared history and the requester's learning preferences.
func synthesisPrompt(userMessage string, step core.ReActStep, state core.EmotionalState, profile core.Profile, memories []memory.Record) string {
	var context strings.Builder
	for _, m := range memories {
		fmt.Fprintf(&context, "Previous interaction: %s\n", m.Content)
	}

	learningStyle := profile.LearningStyle
	if learningStyle == "" {
		learningStyle = defaultLearningStyle
	}
	difficulty := profile.Difficulty
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	interests := strings.Join(profile.Interests, ", ")
	if interests == "" {
		interests = defaultInterests
	}

	return fmt.Sprintf(`Context from previous interactions:
%s
User Message: %s

Planned response draft:
Understanding: %s
Supportive Action: %s
Expected Impact: %s

As a supportive AI companion, generate a response that:
1. Shows genuine understanding of emotions and needs
2. Maintains a warm and personal connection
3. References shared history and previous conversations
4. Offers emotional support and encouragement
5. Promotes well-being and positive growth

Please adapt it for a %s learner with %s difficulty preference.
Consider their interests: %s.
Current emotional state: %s, Confidence: %s`,
		context.String(), userMessage,
		step.Thought, step.Action, step.Observation,
		learningStyle, difficulty, interests,
		state.Mood, state.Confidence)
}

// NormalizeResponse applies the deterministic output post-processing:
// un-escape literal newline sequences, strip leading numeric
// stream-chunk markers, and trim surrounding whitespace. Applying it to
// already-normalized text is a no-op.
func NormalizeResponse(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")

	// Strip markers to a fixpoint so repeated application cannot expose
	// a fresh marker.
	for {
		s = strings.TrimSpace(s)
		marker := streamMarker.FindString(s)
		if marker == "" {
			return s
		}
		s = s[len(marker):]
	}
}
