package itinerary

import (
	"encoding/json"
	"math"
)

// Strategy names one of the fixed itinerary shapes. Its numeric value is the
// candidate id.
type Strategy int

const (
	Balanced Strategy = iota + 1
	HighIntensity
	Relaxed
)

func (s Strategy) String() string {
	switch s {
	case Balanced:
		return "balanced"
	case HighIntensity:
		return "high_intensity"
	case Relaxed:
		return "relaxed"
	default:
		return "unknown"
	}
}

// Fatigue weights.
const (
	fatiguePerActivityHour  = 0.6
	fatigueReliefPerRestDay = 1.2
)

// FatigueScore rises with daily activity hours, falls with rest days and is
// floored at zero.
func FatigueScore(dailyActivityHours float64, restDays int) float64 {
	return math.Max(0, dailyActivityHours*fatiguePerActivityHour-float64(restDays)*fatigueReliefPerRestDay)
}

// Candidate is one proposed activity/rest structure for a trip. It is
// immutable; the fatigue score is derived once in NewCandidate.
type Candidate struct {
	strategy           Strategy
	dailyActivityHours float64
	restDays           int
	sightseeingDensity float64
	estimatedBudget    float64
	travelFatigue      float64
}

// NewCandidate builds a candidate and derives its travel fatigue score.
func NewCandidate(strategy Strategy, dailyActivityHours float64, restDays int, sightseeingDensity, estimatedBudget float64) Candidate {
	return Candidate{
		strategy:           strategy,
		dailyActivityHours: dailyActivityHours,
		restDays:           restDays,
		sightseeingDensity: sightseeingDensity,
		estimatedBudget:    estimatedBudget,
		travelFatigue:      FatigueScore(dailyActivityHours, restDays),
	}
}

func (c Candidate) ID() int                     { return int(c.strategy) }
func (c Candidate) Strategy() Strategy          { return c.strategy }
func (c Candidate) DailyActivityHours() float64 { return c.dailyActivityHours }
func (c Candidate) RestDays() int               { return c.restDays }
func (c Candidate) SightseeingDensity() float64 { return c.sightseeingDensity }
func (c Candidate) EstimatedBudget() float64    { return c.estimatedBudget }
func (c Candidate) TravelFatigueScore() float64 { return c.travelFatigue }

type candidateJSON struct {
	CandidateID        int     `json:"candidate_id"`
	DailyActivityHours float64 `json:"daily_activity_hours"`
	RestDays           int     `json:"rest_days"`
	SightseeingDensity float64 `json:"sightseeing_density"`
	EstimatedBudget    float64 `json:"estimated_budget"`
	TravelFatigueScore float64 `json:"travel_fatigue_score"`
}

// MarshalJSON writes the candidate with density, budget and fatigue rounded
// to two decimals.
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(candidateJSON{
		CandidateID:        c.ID(),
		DailyActivityHours: c.dailyActivityHours,
		RestDays:           c.restDays,
		SightseeingDensity: round(c.sightseeingDensity, 2),
		EstimatedBudget:    round(c.estimatedBudget, 2),
		TravelFatigueScore: round(c.travelFatigue, 2),
	})
}

// UnmarshalJSON reads a stored candidate. The fatigue score is recomputed
// from activity hours and rest days rather than trusted from the input.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var w candidateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = NewCandidate(Strategy(w.CandidateID), w.DailyActivityHours, w.RestDays, w.SightseeingDensity, w.EstimatedBudget)
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
