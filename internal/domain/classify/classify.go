// Package classify maps risk scores to risk levels and evaluation histories
// to trend labels.
package classify

import "github.com/okian/flightrisk/internal/domain/model"

// Band cut points. A score equal to a cut point belongs to the lower band.
const (
	HighAbove   = 70.0
	MediumAbove = 40.0
)

// Level returns the risk level of score. Scores at or below zero that are
// not the failure sentinel are valid and classify as Low.
func Level(score float64) model.RiskLevel {
	switch {
	case score > HighAbove:
		return model.RiskHigh
	case score > MediumAbove:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Trend compares the two most recent scores, given most recent first.
// A lower latest score is falling; a higher one is rising.
func Trend(recent []float64) model.Trend {
	if len(recent) < 2 {
		return model.TrendStable
	}
	switch {
	case recent[0] < recent[1]:
		return model.TrendFalling
	case recent[0] > recent[1]:
		return model.TrendRising
	default:
		return model.TrendStable
	}
}
