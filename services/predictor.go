package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"safar/metrics"
)

// Prediction sources.
const (
	SourceModel     = "model"
	SourceEstimated = "estimated"
	SourceCache     = "cache"
	SourceProvided  = "provided"
)

// ErrPredictionUnavailable means no budget could be predicted for a trip.
var ErrPredictionUnavailable = errors.New("budget prediction unavailable")

// TripFeatures are the inputs of the budget model.
type TripFeatures struct {
	Destination       string  `json:"destination"`
	NumDays           int     `json:"num_days"`
	NumPeople         int     `json:"num_people"`
	Season            string  `json:"season"`
	ComfortLevel      string  `json:"comfort_level"`
	TripType          string  `json:"trip_type"`
	AirportDistanceKm float64 `json:"airport_distance_km"`
}

// WithDefaults fills unset features with the model's training defaults.
func (f TripFeatures) WithDefaults() TripFeatures {
	if strings.TrimSpace(f.Destination) == "" {
		f.Destination = "Hampta Pass"
	}
	if f.NumDays <= 0 {
		f.NumDays = 4
	}
	if f.NumPeople <= 0 {
		f.NumPeople = 1
	}
	if f.Season == "" {
		f.Season = "Winter"
	}
	if f.ComfortLevel == "" {
		f.ComfortLevel = "Standard"
	}
	if f.TripType == "" {
		f.TripType = "Adventure"
	}
	if f.AirportDistanceKm <= 0 {
		f.AirportDistanceKm = 50
	}
	return f
}

// Prediction is a predicted total trip budget and where it came from.
type Prediction struct {
	Amount float64 `json:"amount"`
	Source string  `json:"source"`
}

// BudgetPredictor predicts a total trip budget.
type BudgetPredictor interface {
	PredictBudget(ctx context.Context, f TripFeatures) (Prediction, error)
}

// ─── Remote model client ─────────────────────────────────────────────────────

// RemoteConfig configures RemotePredictor.
type RemoteConfig struct {
	URL             string
	APIKey          string
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// RemotePredictor calls a model-serving endpoint. Calls are rate limited and
// pass through a circuit breaker.
type RemotePredictor struct {
	url        string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[float64]
	logger     zerolog.Logger
}

const breakerName = "budget-predictor"

//nolint:gocritic // zerolog.Logger is passed by value by design
func NewRemotePredictor(cfg RemoteConfig, logger zerolog.Logger) *RemotePredictor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	logger = logger.With().Str("component", "predictor").Logger()
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers and rejected inputs say nothing about the
			// model's health.
			var se *modelStatusError
			if errors.As(err, &se) && se.clientError() {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})

	return &RemotePredictor{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:         cb,
		logger:     logger,
	}
}

// modelRequest uses the field names the model was trained with.
type modelRequest struct {
	Destination  string  `json:"destination"`
	NumDays      int     `json:"numDays"`
	NumPeople    int     `json:"numPeople"`
	Season       string  `json:"season"`
	ComfortLevel string  `json:"comfortLevel"`
	TripType     string  `json:"tripType"`
	AirportDist  float64 `json:"airportDist"`
}

// modelStatusError is a non-200 answer from the model endpoint.
type modelStatusError struct {
	Code int
	Body string
}

func (e *modelStatusError) Error() string {
	return fmt.Sprintf("model error (%d): %s", e.Code, e.Body)
}

func (e *modelStatusError) clientError() bool { return e.Code >= 400 && e.Code < 500 }

type modelResponse struct {
	PredictedBudget *float64 `json:"predicted_budget"`
	Error           string   `json:"error"`
}

func (p *RemotePredictor) PredictBudget(ctx context.Context, f TripFeatures) (pred Prediction, err error) {
	start := time.Now()
	defer func() { metrics.RecordPrediction(SourceModel, time.Since(start), err) }()

	if p.url == "" {
		return Prediction{}, fmt.Errorf("predict budget: model url not configured: %w", ErrPredictionUnavailable)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return Prediction{}, fmt.Errorf("predict budget: rate limit: %w", err)
	}

	amount, err := p.cb.Execute(func() (float64, error) {
		return p.call(ctx, f.WithDefaults())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Prediction{}, fmt.Errorf("predict budget: %w: %w", ErrPredictionUnavailable, err)
		}
		return Prediction{}, fmt.Errorf("predict budget: %w", err)
	}

	p.logger.Debug().Str("destination", f.Destination).Float64("amount", amount).Msg("budget predicted")
	return Prediction{Amount: amount, Source: SourceModel}, nil
}

func (p *RemotePredictor) call(ctx context.Context, f TripFeatures) (float64, error) {
	body, err := json.Marshal(modelRequest{
		Destination:  f.Destination,
		NumDays:      f.NumDays,
		NumPeople:    f.NumPeople,
		Season:       f.Season,
		ComfortLevel: f.ComfortLevel,
		TripType:     f.TripType,
		AirportDist:  f.AirportDistanceKm,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read model response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return 0, fmt.Errorf("model is loading: %w", ErrPredictionUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &modelStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out modelResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("parse model response: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("model: %s: %w", out.Error, ErrPredictionUnavailable)
	}
	if out.PredictedBudget == nil {
		return 0, fmt.Errorf("model response has no predicted_budget: %w", ErrPredictionUnavailable)
	}

	amount := *out.PredictedBudget
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("model returned invalid budget %v: %w", amount, ErrPredictionUnavailable)
	}
	return amount, nil
}

// ─── Fallback chain ──────────────────────────────────────────────────────────

// FallbackPredictor asks primary first and, on any error, fallback. A nil
// primary goes straight to fallback.
type FallbackPredictor struct {
	primary  BudgetPredictor
	fallback BudgetPredictor
	logger   zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is passed by value by design
func NewFallbackPredictor(primary, fallback BudgetPredictor, logger zerolog.Logger) *FallbackPredictor {
	return &FallbackPredictor{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "predictor").Logger(),
	}
}

func (p *FallbackPredictor) PredictBudget(ctx context.Context, f TripFeatures) (Prediction, error) {
	if p.primary != nil {
		pred, err := p.primary.PredictBudget(ctx, f)
		if err == nil {
			return pred, nil
		}
		if ctx.Err() != nil {
			return Prediction{}, err
		}
		p.logger.Warn().Err(err).Str("destination", f.Destination).Msg("model prediction failed, using estimate")
	}

	if p.fallback == nil {
		return Prediction{}, fmt.Errorf("predict budget: no fallback: %w", ErrPredictionUnavailable)
	}
	return p.fallback.PredictBudget(ctx, f)
}
