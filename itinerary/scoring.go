package itinerary

import "math"

const (
	safetyPenalty      = 0.4
	fatiguePenaltyRate = 0.03
	maxFatiguePenalty  = 0.25
	budgetPenaltyRate  = 0.2
	maxBudgetPenalty   = 0.2
	activityBonus      = 0.05
	restBonus          = 0.05

	minBalancedHours = 4
	maxBalancedHours = 8
	minBalancedRest  = 1
	maxBalancedRest  = 2
)

// ScoreBreakdown holds every term that went into an itinerary score. Values
// are rounded to three decimals.
type ScoreBreakdown struct {
	SafetyCompliance     float64 `json:"safety_compliance"`
	FatiguePenalty       float64 `json:"fatigue_penalty"`
	BudgetDeviation      float64 `json:"budget_deviation"`
	BudgetPenalty        float64 `json:"budget_penalty"`
	ActivityBalanceBonus float64 `json:"activity_balance_bonus"`
	RestDayBonus         float64 `json:"rest_day_bonus"`

	// ItineraryScore travels next to the breakdown on the wire, see ScoredCandidate.
	ItineraryScore float64 `json:"-"`
}

// Score rates a candidate against the predicted budget.
//
// Penalties are subtracted and bonuses added to a running total that starts
// at 1.0; the total is clamped to [0, 1] only once, after all terms. Bonuses
// can therefore offset penalties that took the total below zero.
func Score(c Candidate, predictedBudget float64, safetyCompliant bool) ScoreBreakdown {
	score := 1.0

	compliance := 1.0
	if !safetyCompliant {
		compliance = 0
		score -= safetyPenalty
	}

	fatiguePenalty := math.Min(maxFatiguePenalty, c.TravelFatigueScore()*fatiguePenaltyRate)
	score -= fatiguePenalty

	// max(1, ...) guards the division for zero predictions.
	deviation := math.Abs(c.EstimatedBudget()-predictedBudget) / math.Max(1, predictedBudget)
	budgetPenalty := math.Min(maxBudgetPenalty, deviation*budgetPenaltyRate)
	score -= budgetPenalty

	var actBonus float64
	if h := c.DailyActivityHours(); h >= minBalancedHours && h <= maxBalancedHours {
		actBonus = activityBonus
		score += actBonus
	}

	var rBonus float64
	if r := c.RestDays(); r >= minBalancedRest && r <= maxBalancedRest {
		rBonus = restBonus
		score += rBonus
	}

	return ScoreBreakdown{
		SafetyCompliance:     compliance,
		FatiguePenalty:       round(fatiguePenalty, 3),
		BudgetDeviation:      round(deviation, 3),
		BudgetPenalty:        round(budgetPenalty, 3),
		ActivityBalanceBonus: round(actBonus, 3),
		RestDayBonus:         round(rBonus, 3),
		ItineraryScore:       round(math.Max(0, math.Min(score, 1)), 3),
	}
}

// ScoredCandidate pairs a candidate with its score breakdown.
type ScoredCandidate struct {
	Candidate      Candidate      `json:"candidate"`
	ItineraryScore float64        `json:"itinerary_score"`
	Breakdown      ScoreBreakdown `json:"scoring_breakdown"`
}

// ScoreCandidate scores c and returns the pair.
func ScoreCandidate(c Candidate, predictedBudget float64, safetyCompliant bool) ScoredCandidate {
	b := Score(c, predictedBudget, safetyCompliant)
	return ScoredCandidate{Candidate: c, ItineraryScore: b.ItineraryScore, Breakdown: b}
}
