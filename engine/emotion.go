package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tekmindlabs/aivy-go-sdk/core"
	"github.com/tekmindlabs/aivy-go-sdk/generate"
)

// errorAnalysis is the placeholder analysis when generation fails.
const errorAnalysis = "Error analyzing emotional state"

// Mood lexicons, checked in declared order. The first lexicon with any
// substring hit wins, regardless of match count.
var moodLexicons = []struct {
	mood  core.Mood
	words []string
}{
	{core.MoodPositive, []string{"joy", "happy", "excited", "enthusiastic", "content", "pleased"}},
	{core.MoodNegative, []string{"sad", "anxious", "frustrated", "angry", "worried", "stressed"}},
	{core.MoodNeutral, []string{"calm", "neutral", "balanced", "steady", "composed"}},
}

var highConfidencePhrases = []string{
	"very confident", "high confidence", "strong indication", "clearly shows", "definitely",
}

var lowConfidencePhrases = []string{
	"low confidence", "uncertain", "unclear", "might be", "possibly", "not sure",
}

// inferEmotion analyzes the conversation's emotional context. It never
// fails: a generation error yields the neutral default and a placeholder
// analysis string.
func (e *Engine) inferEmotion(ctx context.Context, messages []core.Message) (core.EmotionalState, string) {
	return InferEmotion(ctx, e.generator, messages)
}

// InferEmotion runs one generation call over the conversation and
// classifies the resulting analysis text into an emotional state.
func InferEmotion(ctx context.Context, gen generate.Generator, messages []core.Message) (core.EmotionalState, string) {
	raw, err := gen.GenerateContent(ctx, emotionPrompt(messages))
	if err != nil {
		log.Printf("[ENGINE] Emotional analysis failed, using neutral default: %v", err)
		return core.NeutralState(), errorAnalysis
	}

	analysis := ExtractAnalysis(raw)
	return core.EmotionalState{
		Mood:       ClassifyMood(analysis),
		Confidence: ClassifyConfidence(analysis),
	}, analysis
}

// emotionPrompt asks for a structured emotional analysis of the
// conversation so far.
func emotionPrompt(messages []core.Message) string {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	return fmt.Sprintf(`As an emotionally intelligent AI companion, analyze the emotional context and personal state of our conversation:
%s
Please provide a detailed analysis of:
1. Emotional State:
   - Primary emotion (joy, sadness, anxiety, excitement, etc.)
   - Emotional intensity (high/medium/low)
   - Underlying feelings or concerns

2. Personal Context:
   - Current mood and energy level
   - Signs of stress or well-being
   - Social and emotional needs
   - Communication preferences

3. Relationship Dynamic:
   - Level of openness and trust
   - Engagement in conversation
   - Areas where support is needed

Format the response as:
{
  "emotionalState": {
    "mood": "[primary emotion]",
    "intensity": "[high/medium/low]",
    "confidence": "[high/medium/low]"
  },
  "analysis": "[detailed emotional and contextual analysis]"
}`, transcript.String())
}

// ExtractAnalysis pulls the "analysis" field out of a top-level JSON
// object embedded in the generated text. On any parse failure the raw
// text is returned unchanged.
func ExtractAnalysis(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}

	var payload struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil || payload.Analysis == "" {
		return text
	}
	return payload.Analysis
}

// ClassifyMood maps free analysis text to a mood. Lexicons are checked
// in priority order; if none hit, the literal sentiment words decide;
// the default is neutral.
func ClassifyMood(analysis string) core.Mood {
	lower := strings.ToLower(analysis)

	for _, lexicon := range moodLexicons {
		for _, word := range lexicon.words {
			if strings.Contains(lower, word) {
				return lexicon.mood
			}
		}
	}

	if strings.Contains(lower, "positive") {
		return core.MoodPositive
	}
	if strings.Contains(lower, "negative") {
		return core.MoodNegative
	}
	return core.MoodNeutral
}

// ClassifyConfidence maps free analysis text to a confidence level.
// High-confidence phrases are checked before low-confidence ones; no
// hit means medium.
func ClassifyConfidence(analysis string) core.Confidence {
	lower := strings.ToLower(analysis)

	for _, phrase := range highConfidencePhrases {
		if strings.Contains(lower, phrase) {
			return core.ConfidenceHigh
		}
	}
	for _, phrase := range lowConfidencePhrases {
		if strings.Contains(lower, phrase) {
			return core.ConfidenceLow
		}
	}
	return core.ConfidenceMedium
}
