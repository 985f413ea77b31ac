package model

import (
	"encoding/json"
	"math"
	"time"
)

type Dimension string

const (
	DimensionAttitude        Dimension = "attitude"
	DimensionProfessionalism Dimension = "professionalism"
	DimensionCompliance      Dimension = "compliance"
)

// Dimensions lists the scored dimensions in report order.
var Dimensions = []Dimension{DimensionAttitude, DimensionProfessionalism, DimensionCompliance}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// QualityIssue points at a turn by its zero-based index in the parsed conversation.
type QualityIssue struct {
	Dimension   Dimension `json:"dimension"`
	IssueType   string    `json:"issue_type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	TurnIndex   int       `json:"turn_index"`
	Remedy      string    `json:"remedy,omitempty"`
}

// InspectionReport is the unit of persistence and of review. Dimension scores are nil
// when that dimension could not be scored.
type InspectionReport struct {
	ID                   int64          `json:"id"`
	SessionID            string         `json:"session_id"`
	OverallScore         float64        `json:"overall_score"`
	AttitudeScore        *float64       `json:"attitude_score"`
	ProfessionalismScore *float64       `json:"professionalism_score"`
	ComplianceScore      *float64       `json:"compliance_score"`
	Unavailable          []Dimension    `json:"unavailable,omitempty"`
	Issues               []QualityIssue `json:"issues"`
	Suggestions          []string       `json:"suggestions,omitempty"`
	TurnCount            int            `json:"turn_count"`
	CreatedAt            time.Time      `json:"created_at"`
	Review               ReviewStatus   `json:"-"`
}

func (r *InspectionReport) Score(d Dimension) *float64 {
	switch d {
	case DimensionAttitude:
		return r.AttitudeScore
	case DimensionProfessionalism:
		return r.ProfessionalismScore
	case DimensionCompliance:
		return r.ComplianceScore
	}
	return nil
}

func (r *InspectionReport) SetScore(d Dimension, score *float64) {
	switch d {
	case DimensionAttitude:
		r.AttitudeScore = score
	case DimensionProfessionalism:
		r.ProfessionalismScore = score
	case DimensionCompliance:
		r.ComplianceScore = score
	}
}

// State returns the review state, treating a missing status as generated.
func (r *InspectionReport) State() ReviewState {
	if r.Review == nil {
		return ReviewStateGenerated
	}
	return r.Review.State()
}

func (r InspectionReport) MarshalJSON() ([]byte, error) {
	type alias InspectionReport
	return json.Marshal(struct {
		alias
		Review reviewRecord `json:"review"`
	}{alias: alias(r), Review: encodeReview(r.Review)})
}

func (r *InspectionReport) UnmarshalJSON(data []byte) error {
	type alias InspectionReport
	aux := struct {
		*alias
		Review reviewRecord `json:"review"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	status, err := decodeReview(aux.Review)
	if err != nil {
		return err
	}
	r.Review = status
	return nil
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Clamp01 bounds v to [0,1]. NaN and infinities map to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
