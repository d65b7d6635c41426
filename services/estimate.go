package services

import (
	"context"
	"math"
	"strings"
)

// Per person per day rates for the estimate used when the model is
// unavailable.
const (
	budgetComfortDailyRate = 4500.0
	defaultDailyRate       = 6000.0
)

// HeuristicPredictor estimates a budget from trip length, group size and
// comfort level. It never fails.
type HeuristicPredictor struct{}

func (HeuristicPredictor) PredictBudget(_ context.Context, f TripFeatures) (Prediction, error) {
	f = f.WithDefaults()
	return Prediction{Amount: EstimateBudget(f), Source: SourceEstimated}, nil
}

// EstimateBudget is days * people * daily rate, rounded to whole units.
func EstimateBudget(f TripFeatures) float64 {
	daily := defaultDailyRate
	if strings.EqualFold(f.ComfortLevel, "Budget") {
		daily = budgetComfortDailyRate
	}
	return math.Round(float64(f.NumDays) * float64(f.NumPeople) * daily)
}

// BudgetSummary is a predicted total split per person, per day and by
// spending category. Amounts are whole units of Currency.
type BudgetSummary struct {
	Destination  string          `json:"destination"`
	NumDays      int             `json:"num_days"`
	NumPeople    int             `json:"num_people"`
	ComfortLevel string          `json:"comfort_level"`
	Total        float64         `json:"total"`
	PerPerson    float64         `json:"per_person"`
	PerDay       float64         `json:"per_day"`
	Currency     string          `json:"currency"`
	Source       string          `json:"source"`
	Breakdown    BudgetBreakdown `json:"breakdown"`
}

type BudgetBreakdown struct {
	Stay       float64 `json:"stay"`
	Travel     float64 `json:"travel"`
	Food       float64 `json:"food"`
	Activities float64 `json:"activities"`
}

// Summarize splits a prediction: stay takes 45% for Luxury trips and 35%
// otherwise, travel and food 25% each, activities the remainder.
func Summarize(f TripFeatures, pred Prediction) BudgetSummary {
	f = f.WithDefaults()
	total := math.Round(pred.Amount)

	stayShare := 0.35
	if strings.EqualFold(f.ComfortLevel, "Luxury") {
		stayShare = 0.45
	}
	stay := math.Round(total * stayShare)
	travel := math.Round(total * 0.25)
	food := math.Round(total * 0.25)

	return BudgetSummary{
		Destination:  f.Destination,
		NumDays:      f.NumDays,
		NumPeople:    f.NumPeople,
		ComfortLevel: f.ComfortLevel,
		Total:        total,
		PerPerson:    math.Round(total / float64(f.NumPeople)),
		PerDay:       math.Round(total / float64(f.NumDays)),
		Currency:     "INR",
		Source:       pred.Source,
		Breakdown: BudgetBreakdown{
			Stay:       stay,
			Travel:     travel,
			Food:       food,
			Activities: total - stay - travel - food,
		},
	}
}
