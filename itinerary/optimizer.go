package itinerary

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"safar/logging"
)

// SafetyRules reports whether a destination is on the high-risk list.
type SafetyRules interface {
	IsHighRisk(destination string) bool
}

// HighRiskSet is a set of high-risk destination identifiers. Membership is
// case-sensitive; only surrounding whitespace is ignored, on both the
// stored identifiers and the looked-up destination.
type HighRiskSet map[string]struct{}

// NewHighRiskSet builds a set from destination identifiers, skipping blanks.
func NewHighRiskSet(destinations ...string) HighRiskSet {
	s := make(HighRiskSet, len(destinations))
	for _, d := range destinations {
		if d = strings.TrimSpace(d); d != "" {
			s[d] = struct{}{}
		}
	}
	return s
}

func (s HighRiskSet) IsHighRisk(destination string) bool {
	_, ok := s[strings.TrimSpace(destination)]
	return ok
}

// Destinations returns the set members sorted.
func (s HighRiskSet) Destinations() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Request is one optimisation call. BudgetPrediction must already be
// available; Optimize never predicts, retries or falls back.
type Request struct {
	Destination      string
	NumDays          int
	BudgetPrediction float64
	Preferences      Preferences

	// Safety may be nil, in which case no destination is high risk.
	Safety SafetyRules
}

// Result is the outcome of one optimisation. RunID and BudgetSource are
// filled in by callers that persist or predict.
type Result struct {
	RunID            string            `json:"run_id,omitempty"`
	Destination      string            `json:"destination"`
	NumDays          int               `json:"num_days"`
	BudgetPrediction float64           `json:"budget_prediction"`
	BudgetSource     string            `json:"budget_source,omitempty"`
	SafetyCompliant  bool              `json:"safety_compliant"`
	Candidates       []ScoredCandidate `json:"candidates"`
	Selected         ScoredCandidate   `json:"selected_itinerary"`
	Explanation      string            `json:"explanation"`
}

// Optimize generates the three candidates, scores them, selects the best and
// explains the choice.
func Optimize(req Request) (*Result, error) {
	if req.NumDays <= 0 {
		return nil, fmt.Errorf("optimize %q: num_days=%d: %w", req.Destination, req.NumDays, ErrInvalidTripLength)
	}
	if req.BudgetPrediction < 0 || math.IsNaN(req.BudgetPrediction) || math.IsInf(req.BudgetPrediction, 0) {
		return nil, fmt.Errorf("optimize %q: budget=%v: %w", req.Destination, req.BudgetPrediction, ErrInvalidBudget)
	}

	safe := req.Safety == nil || !req.Safety.IsHighRisk(req.Destination)

	candidates := GenerateCandidates(req.Destination, req.NumDays, req.Preferences)
	scored := scoreAll(candidates, req.BudgetPrediction, safe)

	best, err := SelectBest(scored)
	if err != nil {
		return nil, fmt.Errorf("optimize %q: %w", req.Destination, err)
	}

	return &Result{
		Destination:      req.Destination,
		NumDays:          req.NumDays,
		BudgetPrediction: round(req.BudgetPrediction, 2),
		SafetyCompliant:  safe,
		Candidates:       scored,
		Selected:         best,
		Explanation:      Explain(best, req.Destination),
	}, nil
}

// scoreAll scores candidates concurrently and keeps generation order.
func scoreAll(candidates []Candidate, predictedBudget float64, safe bool) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, c Candidate) {
			defer wg.Done()
			scored[idx] = ScoreCandidate(c, predictedBudget, safe)
		}(i, c)
	}
	wg.Wait()

	return scored
}

// Optimizer wraps Optimize with a configured default daily budget and
// structured logging.
type Optimizer struct {
	defaultDailyBudget float64
	logger             zerolog.Logger
}

// NewOptimizer returns an Optimizer. A non-positive defaultDailyBudget keeps
// DefaultDailyBudget.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func NewOptimizer(defaultDailyBudget float64, logger zerolog.Logger) *Optimizer {
	if defaultDailyBudget <= 0 {
		defaultDailyBudget = DefaultDailyBudget
	}
	return &Optimizer{
		defaultDailyBudget: defaultDailyBudget,
		logger:             logger.With().Str("component", "itinerary").Logger(),
	}
}

// Optimize runs one optimisation. ctx only carries the request id for logs.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (o *Optimizer) Optimize(ctx context.Context, req Request) (res *Result, err error) {
	defer logging.Time(ctx, "itinerary.Optimize")(&err)

	if req.Preferences.DailyBudget <= 0 {
		req.Preferences.DailyBudget = o.defaultDailyBudget
	}

	res, err = Optimize(req)
	if err != nil {
		return nil, err
	}

	o.logger.Debug().
		Str("request_id", logging.RequestID(ctx)).
		Str("destination", res.Destination).
		Int("num_days", res.NumDays).
		Bool("safety_compliant", res.SafetyCompliant).
		Int("selected", res.Selected.Candidate.ID()).
		Float64("score", res.Selected.ItineraryScore).
		Msg("itinerary selected")

	return res, nil
}
