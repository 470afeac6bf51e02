package assessment

import (
	"context"
)

// Classification is the outcome of a classifier run.
type Classification struct {
	State         SeverityState
	Strategy      Strategy
	Probabilities []float32
}

// Classifier maps validated scores to a severity state.
type Classifier interface {
	Classify(ctx context.Context, scores Scores) (Classification, error)
}

// RuleBasedClassifier applies fixed thresholds to the raw score total.
type RuleBasedClassifier struct{}

// NewRuleBasedClassifier constructs the threshold classifier.
func NewRuleBasedClassifier() *RuleBasedClassifier {
	return &RuleBasedClassifier{}
}

// Classify implements Classifier.
func (c *RuleBasedClassifier) Classify(_ context.Context, scores Scores) (Classification, error) {
	return Classification{State: c.ClassifyScores(scores), Strategy: StrategyRule}, nil
}

// ClassifyScores returns the severity for raw scores.
//
// Two uniform answer patterns are special-cased before the thresholds
// apply: all "Never" is None, and all "Always" is Severe even though its
// total (24) would otherwise land on None.
func (c *RuleBasedClassifier) ClassifyScores(scores Scores) SeverityState {
	switch {
	case uniform(scores, 1):
		return SeverityNone
	case uniform(scores, 2):
		return SeveritySevere
	}
	return stateForTotal(scores.Sum())
}

func stateForTotal(total int) SeverityState {
	switch {
	case total >= 24:
		return SeverityNone
	case total >= 16:
		return SeverityMild
	case total >= 8:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

func uniform(scores Scores, value int) bool {
	for _, v := range scores {
		if v != value {
			return false
		}
	}
	return true
}
