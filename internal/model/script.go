package model

type CustomerType string

const (
	CustomerNew      CustomerType = "new"
	CustomerRegular  CustomerType = "regular"
	CustomerVIP      CustomerType = "vip"
	CustomerHighRisk CustomerType = "high_risk"
	CustomerLowRisk  CustomerType = "low_risk"
)

// CandidateScript is a retrieved script. UsageCount and SuccessRate are maintained by
// an external feedback process and are read-only here.
type CandidateScript struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Relevance   float64  `json:"relevance"`
	UsageCount  int64    `json:"usage_count"`
	SuccessRate float64  `json:"success_rate"`
}

type RankedScript struct {
	CandidateScript
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
	Personalized string  `json:"personalized,omitempty"`
}

// Text returns the personalized variant when one was produced.
func (r RankedScript) Text() string {
	if r.Personalized != "" {
		return r.Personalized
	}
	return r.Content
}

type CustomerProfile struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	CustomerType CustomerType      `json:"customer_type,omitempty"`
	Age          int               `json:"age,omitempty"`
	Gender       string            `json:"gender,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
}

// AgeBand buckets the customer's age for tone adaptation.
func (p CustomerProfile) AgeBand() string {
	switch {
	case p.Age <= 0:
		return "unknown"
	case p.Age < 30:
		return "young"
	case p.Age < 50:
		return "middle"
	default:
		return "senior"
	}
}
