// Package history persists conversation exchanges, user feedback, and usage
// scenarios as JSON files in a data directory. Records are append-only; the
// chat log keeps only the newest entries once it exceeds the retention cap.
package history

import (
	"fmt"
	"time"
)

// Feedback types callers may submit.
const (
	FeedbackMappingAccuracy      = "mapping_accuracy"
	FeedbackSuggestionUsefulness = "suggestion_usefulness"
)

// Usage scenarios callers may report.
const (
	ScenarioDecisionBefore  = "decision_before"
	ScenarioReviewAfter     = "review_after"
	ScenarioMoodFluctuation = "mood_fluctuation"
)

// ChatRecord is one completed exchange.
type ChatRecord struct {
	ID                     string    `json:"id"`
	Timestamp              time.Time `json:"timestamp"`
	UserMessage            string    `json:"user_message"`
	AssistantMessage       string    `json:"assistant_message"`
	ClientIP               string    `json:"client_ip"`
	MessageCount           int       `json:"message_count"`
	UserMessageLength      int       `json:"user_message_length"`
	AssistantMessageLength int       `json:"assistant_message_length"`
}

// Feedback is one user rating of a response.
type Feedback struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	MessageID    string    `json:"message_id"`
	FeedbackType string    `json:"feedback_type"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	IP           string    `json:"ip"`
}

// Validate checks the feedback type and rating range.
func (f *Feedback) Validate() error {
	switch f.FeedbackType {
	case FeedbackMappingAccuracy, FeedbackSuggestionUsefulness:
	default:
		return fmt.Errorf("feedback_type must be %s or %s", FeedbackMappingAccuracy, FeedbackSuggestionUsefulness)
	}

	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be an integer between 1 and 5")
	}

	return nil
}

// Scenario is one reported usage context.
type Scenario struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Scenario         string    `json:"scenario"`
	UserQuestionType string    `json:"user_question_type,omitempty"`
	IP               string    `json:"ip"`
}

// Validate checks the scenario is one of the known values.
func (s *Scenario) Validate() error {
	switch s.Scenario {
	case ScenarioDecisionBefore, ScenarioReviewAfter, ScenarioMoodFluctuation:
		return nil
	}
	return fmt.Errorf("scenario must be one of [%s %s %s]",
		ScenarioDecisionBefore, ScenarioReviewAfter, ScenarioMoodFluctuation)
}
