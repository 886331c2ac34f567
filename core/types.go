// Package core defines the shared domain types of the Aivy companion
// pipeline: conversation messages, emotional state, ReAct steps, and the
// learner profile used for response personalization.
package core

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the running conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mood is the coarse emotional tone inferred from a conversation.
type Mood string

const (
	MoodPositive Mood = "positive"
	MoodNegative Mood = "negative"
	MoodNeutral  Mood = "neutral"
)

// Confidence expresses how strongly the mood signal was supported.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// EmotionalState pairs a mood with the confidence of its inference.
type EmotionalState struct {
	Mood       Mood       `json:"mood"`
	Confidence Confidence `json:"confidence"`
}

// NeutralState is the safe default when no emotional signal is available.
func NeutralState() EmotionalState {
	return EmotionalState{Mood: MoodNeutral, Confidence: ConfidenceMedium}
}

// ReActStep is one thought-action-observation planning unit produced per
// pipeline run.
type ReActStep struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
	Response    string `json:"response,omitempty"`
}

// Profile carries the requester's personalization preferences.
type Profile struct {
	LearningStyle string   `json:"learningStyle,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Interests     []string `json:"interests,omitempty"`
}
