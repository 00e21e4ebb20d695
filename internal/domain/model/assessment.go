package model

// FeatureVector is the per-person input of the risk scorer.
type FeatureVector struct {
	TenureMonths int       `json:"tenureMonths"`
	RecentScores []float64 `json:"evaluationScores"` // most recent first
	Absences90d  int       `json:"absences90d"`
	Lates90d     int       `json:"lates90d"`
}

// RiskLevel is the discrete band of a risk score.
type RiskLevel string

// Risk levels, ordered from most to least severe.
const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// Levels lists every risk level in presentation order.
var Levels = []RiskLevel{RiskHigh, RiskMedium, RiskLow}

// Trend is the direction of the two most recent evaluation scores.
// Falling means the latest score is lower than the one before it.
type Trend string

// Evaluation trends.
const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Factors are the explanatory signals attached to an assessment.
type Factors struct {
	EvaluationTrend Trend `json:"evaluationTrend"`
	Absences90d     int   `json:"absences90d"`
	Lates90d        int   `json:"lates90d"`
	TenureMonths    int   `json:"tenureMonths"`
}

// RiskAssessment is the scored outcome for one eligible person in one run.
type RiskAssessment struct {
	PersonID   string    `json:"personId"`
	PersonName string    `json:"personName,omitempty"`
	RiskScore  float64   `json:"riskScore"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Summary    string    `json:"summary"`
	Factors    Factors   `json:"factors"`
}
