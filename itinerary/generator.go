package itinerary

// DefaultDailyBudget is used when preferences carry no positive daily budget.
const DefaultDailyBudget = 5000.0

// Preferences are the user inputs the generator reads. Interests are carried
// through for callers but do not affect generation.
type Preferences struct {
	DailyBudget float64  `json:"daily_budget,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

func (p Preferences) dailyBudget() float64 {
	if p.DailyBudget > 0 {
		return p.DailyBudget
	}
	return DefaultDailyBudget
}

// GenerateCandidates returns the balanced, high intensity and relaxed
// candidates, always in that order.
//
// numDays is not validated here; Optimize rejects non-positive trip lengths
// before calling it. The destination does not influence the templates.
func GenerateCandidates(destination string, numDays int, prefs Preferences) []Candidate {
	base := prefs.dailyBudget() * float64(numDays)

	return []Candidate{
		NewCandidate(Balanced, 6, max(1, numDays/5), 1.0, base),
		NewCandidate(HighIntensity, 8, 0, 1.4, base*1.2),
		NewCandidate(Relaxed, 4, max(2, numDays/3), 0.7, base*0.8),
	}
}
