package itinerary

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectBest returns the highest scoring candidate. Ties go to the candidate
// that appears first.
func SelectBest(scored []ScoredCandidate) (ScoredCandidate, error) {
	if len(scored) == 0 {
		return ScoredCandidate{}, ErrEmptyCandidateSet
	}

	best := scored[0]
	for _, sc := range scored[1:] {
		if sc.ItineraryScore > best.ItineraryScore {
			best = sc
		}
	}
	return best, nil
}

// Explain describes why the selected candidate won. When no factor
// qualifies the sentence ends in "due to: ." unchanged.
func Explain(best ScoredCandidate, destination string) string {
	c := best.Candidate
	b := best.Breakdown

	factors := make([]string, 0, 5)
	if b.SafetyCompliance == 1.0 {
		factors = append(factors, "safety compliance (✓)")
	}
	if b.ActivityBalanceBonus > 0 {
		hours := strconv.FormatFloat(c.DailyActivityHours(), 'f', -1, 64)
		factors = append(factors, fmt.Sprintf("optimal daily activity intensity (%sh/day)", hours))
	}
	if b.RestDayBonus > 0 {
		factors = append(factors, fmt.Sprintf("balanced rest days (%d rest days)", c.RestDays()))
	}
	if b.BudgetPenalty < 0.1 {
		factors = append(factors, "good budget alignment")
	}
	if b.FatiguePenalty < 0.1 {
		factors = append(factors, "manageable travel fatigue")
	}

	return fmt.Sprintf("The selected itinerary for %s scores %.1f%% due to: %s.",
		destination, best.ItineraryScore*100, strings.Join(factors, ", "))
}
