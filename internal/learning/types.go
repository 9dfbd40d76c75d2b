package learning

import (
	"time"

	"github.com/google/uuid"
)

// UserFeedback is one user judgement about a suggested pattern or fix.
type UserFeedback struct {
	// ID uniquely identifies this feedback event.
	ID uuid.UUID `json:"id"`

	// PatternID names the pattern the feedback applies to.
	PatternID string `json:"pattern_id"`

	// FixSuggestionID names the fix that was attempted, if any.
	FixSuggestionID string `json:"fix_suggestion_id,omitempty"`

	// Rating is the user's 1-5 assessment of the suggestion.
	Rating int `json:"rating"`

	// Success reports whether the suggested fix actually resolved the
	// failure.
	Success bool `json:"success"`

	// Comments is free-form user commentary.
	Comments string `json:"comments,omitempty"`

	// Timestamp is when the feedback was given.
	Timestamp time.Time `json:"timestamp"`
}

// NewFeedback builds a feedback event with a fresh id and timestamp.
func NewFeedback(patternID string, rating int, success bool) *UserFeedback {
	return &UserFeedback{
		ID:        uuid.New(),
		PatternID: patternID,
		Rating:    rating,
		Success:   success,
		Timestamp: time.Now(),
	}
}

// Candidate is a recurring unrecognized failure proposed for promotion
// into the pattern catalog.
type Candidate struct {
	// ErrorSignature is the normalized signature the candidate was
	// aggregated under.
	ErrorSignature string `json:"error_signature"`

	// Frequency is how many times the signature has been observed.
	Frequency int `json:"frequency"`

	// Category is the inferred failure category.
	Category string `json:"category"`

	// Keywords are the salient terms extracted from the signature.
	Keywords []string `json:"keywords"`

	// Regex is the generated expression matching future occurrences.
	Regex string `json:"regex"`

	// ConfidenceBase is the prior the promoted pattern would start with.
	ConfidenceBase float64 `json:"confidence_base"`

	// FirstSeen and LastSeen bound the observation window.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Stats summarizes the learning engine's activity.
type Stats struct {
	FeedbackProcessed uint64 `json:"feedback_processed"`
	TrackedUnknowns   int    `json:"tracked_unknowns"`
	Promoted          uint64 `json:"promoted"`
}
