// Package categorize partitions risk assessments by level and projects the
// partitions onto an organizational unit.
package categorize

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/flightrisk/internal/domain/model"
)

// AllUnits selects every organizational unit.
const AllUnits = "all"

// Counts are the population counters of one run.
type Counts struct {
	Considered int `json:"considered"`
	Eligible   int `json:"eligible"`
	Scored     int `json:"scored"`
	Failed     int `json:"failed"`
}

// Result is the categorized outcome of one run. Each partition is ordered by
// descending risk score, ties in input order.
type Result struct {
	High   []model.RiskAssessment `json:"high"`
	Medium []model.RiskAssessment `json:"medium"`
	Low    []model.RiskAssessment `json:"low"`
	NoData bool                   `json:"noData"`
	Counts Counts                 `json:"counts"`
}

// Categorize builds a Result from assessments. NoData is set when nobody was
// eligible for scoring.
func Categorize(assessments []model.RiskAssessment, counts Counts) Result {
	r := Result{
		High:   []model.RiskAssessment{},
		Medium: []model.RiskAssessment{},
		Low:    []model.RiskAssessment{},
		NoData: counts.Eligible == 0,
		Counts: counts,
	}

	for _, a := range assessments {
		switch a.RiskLevel {
		case model.RiskHigh:
			r.High = append(r.High, a)
		case model.RiskMedium:
			r.Medium = append(r.Medium, a)
		default:
			r.Low = append(r.Low, a)
		}
	}

	byScoreDesc := func(a, b model.RiskAssessment) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	}
	slices.SortStableFunc(r.High, byScoreDesc)
	slices.SortStableFunc(r.Medium, byScoreDesc)
	slices.SortStableFunc(r.Low, byScoreDesc)

	return r
}

// Partition returns the partition holding level.
func (r Result) Partition(level model.RiskLevel) []model.RiskAssessment {
	switch level {
	case model.RiskHigh:
		return r.High
	case model.RiskMedium:
		return r.Medium
	default:
		return r.Low
	}
}

// Len is the number of assessments across all partitions.
func (r Result) Len() int {
	return len(r.High) + len(r.Medium) + len(r.Low)
}

// Message is the user-facing description of the result state.
func (r Result) Message() string {
	switch {
	case r.NoData:
		return "No data: nobody has enough evaluation history to be assessed."
	case r.Len() == 0 && r.Counts.Failed > 0:
		return "No assessment available: the risk scorer failed for every eligible person."
	case r.Len() == 0:
		return "No people match the selected organizational unit."
	case len(r.High) == 0 && len(r.Medium) == 0:
		return "All assessed people are low risk."
	default:
		return "Risk assessment available."
	}
}

// IsAll reports whether selector means every unit.
func IsAll(selector string) bool {
	s := strings.TrimSpace(selector)
	return s == "" || strings.EqualFold(s, AllUnits)
}

// Filter projects r onto the people whose unit in units equals selector.
// People without a unit never match a specific selector. r is not modified.
func Filter(r Result, selector string, units map[string]string) Result {
	out := Result{NoData: r.NoData, Counts: r.Counts}
	if IsAll(selector) {
		out.High = slices.Clone(r.High)
		out.Medium = slices.Clone(r.Medium)
		out.Low = slices.Clone(r.Low)
		return out
	}

	unit := strings.TrimSpace(selector)
	keep := func(in []model.RiskAssessment) []model.RiskAssessment {
		kept := make([]model.RiskAssessment, 0, len(in))
		for _, a := range in {
			if u := units[a.PersonID]; u != "" && u == unit {
				kept = append(kept, a)
			}
		}
		return kept
	}
	out.High = keep(r.High)
	out.Medium = keep(r.Medium)
	out.Low = keep(r.Low)
	return out
}
