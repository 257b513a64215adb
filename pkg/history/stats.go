package history

// RatingSummary aggregates one feedback type.
type RatingSummary struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

// ScenarioSummary aggregates reported usage scenarios.
type ScenarioSummary struct {
	Total           int `json:"total"`
	DecisionBefore  int `json:"decision_before"`
	ReviewAfter     int `json:"review_after"`
	MoodFluctuation int `json:"mood_fluctuation"`
}

// Stats is the aggregate view over all feedback and scenario records.
type Stats struct {
	TotalFeedbacks       int             `json:"total_feedbacks"`
	MappingAccuracy      RatingSummary   `json:"mapping_accuracy"`
	SuggestionUsefulness RatingSummary   `json:"suggestion_usefulness"`
	Scenarios            ScenarioSummary `json:"scenarios"`
}

// FeedbackStats computes aggregate counts and average ratings over everything
// recorded so far.
func (s *Store) FeedbackStats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var feedbacks []Feedback
	s.load(feedbackFile, &feedbacks)

	var scenarios []Scenario
	s.load(scenarioFile, &scenarios)

	stats := &Stats{TotalFeedbacks: len(feedbacks)}

	var mappingSum, suggestionSum int
	for _, f := range feedbacks {
		switch f.FeedbackType {
		case FeedbackMappingAccuracy:
			stats.MappingAccuracy.Count++
			mappingSum += f.Rating
		case FeedbackSuggestionUsefulness:
			stats.SuggestionUsefulness.Count++
			suggestionSum += f.Rating
		}
	}
	if stats.MappingAccuracy.Count > 0 {
		stats.MappingAccuracy.AverageRating = float64(mappingSum) / float64(stats.MappingAccuracy.Count)
	}
	if stats.SuggestionUsefulness.Count > 0 {
		stats.SuggestionUsefulness.AverageRating = float64(suggestionSum) / float64(stats.SuggestionUsefulness.Count)
	}

	stats.Scenarios.Total = len(scenarios)
	for _, sc := range scenarios {
		switch sc.Scenario {
		case ScenarioDecisionBefore:
			stats.Scenarios.DecisionBefore++
		case ScenarioReviewAfter:
			stats.Scenarios.ReviewAfter++
		case ScenarioMoodFluctuation:
			stats.Scenarios.MoodFluctuation++
		}
	}

	return stats, nil
}
