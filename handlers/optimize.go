package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safar/database"
	"safar/itinerary"
	"safar/logging"
	"safar/metrics"
	"safar/services"
)

// TripRequest carries the budget model features shared by /budget and
// /optimize.
type TripRequest struct {
	Destination       string  `json:"destination" binding:"required"`
	NumDays           int     `json:"num_days"`
	NumPeople         int     `json:"num_people" binding:"gte=0"`
	Season            string  `json:"season"`
	ComfortLevel      string  `json:"comfort_level" binding:"omitempty,oneof=Budget Standard Luxury"`
	TripType          string  `json:"trip_type"`
	AirportDistanceKm float64 `json:"airport_distance_km" binding:"gte=0"`
}

func (r TripRequest) features() services.TripFeatures {
	return services.TripFeatures{
		Destination:       strings.TrimSpace(r.Destination),
		NumDays:           r.NumDays,
		NumPeople:         r.NumPeople,
		Season:            r.Season,
		ComfortLevel:      r.ComfortLevel,
		TripType:          r.TripType,
		AirportDistanceKm: r.AirportDistanceKm,
	}
}

type OptimizeRequest struct {
	TripRequest

	// BudgetPrediction skips the predictor when set.
	BudgetPrediction *float64              `json:"budget_prediction"`
	UserPreferences  itinerary.Preferences `json:"user_preferences"`
}

func (h *Handler) Optimize(c *gin.Context) {
	ctx := c.Request.Context()

	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	features := req.features()

	var pred services.Prediction
	switch {
	case req.BudgetPrediction != nil:
		pred = services.Prediction{Amount: *req.BudgetPrediction, Source: services.SourceProvided}
	case req.NumDays <= 0:
		// Rejected before spending a model call on it.
		metrics.RecordOptimization("invalid", "", false, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "num_days must be a positive integer"})
		return
	default:
		p, ok := h.predict(c, features)
		if !ok {
			metrics.RecordOptimization("error", "", false, 0)
			return
		}
		pred = p
	}

	res, err := h.optimizer.Optimize(ctx, itinerary.Request{
		Destination:      features.Destination,
		NumDays:          features.NumDays,
		BudgetPrediction: pred.Amount,
		Preferences:      req.UserPreferences,
		Safety:           h.safety,
	})
	if err != nil {
		if errors.Is(err, itinerary.ErrInvalidTripLength) || errors.Is(err, itinerary.ErrInvalidBudget) {
			metrics.RecordOptimization("invalid", "", false, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.RecordOptimization("error", "", false, 0)
		logging.Ctx(ctx).Error().Err(err).Msg("optimisation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to optimise itinerary"})
		return
	}
	res.BudgetSource = pred.Source

	party := features.WithDefaults()
	run := database.NewRun(res, party.NumPeople, party.ComfortLevel)
	run.CreatedAt = time.Now().UTC()

	if h.store != nil {
		res.RunID = uuid.New().String()
		run.ID = res.RunID
		if err := h.store.SaveRun(ctx, run); err != nil {
			// The result is still valid; it just cannot be fetched later.
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to persist optimisation run")
			res.RunID = ""
		}
	}

	metrics.RecordOptimization("ok", res.Selected.Candidate.Strategy().String(), res.SafetyCompliant, res.Selected.ItineraryScore)
	c.JSON(http.StatusOK, newRunResponse(run))
}

// predict writes the error response itself and reports false on failure.
func (h *Handler) predict(c *gin.Context, f services.TripFeatures) (services.Prediction, bool) {
	ctx := c.Request.Context()
	if h.predictor == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "No budget predictor configured; supply budget_prediction"})
		return services.Prediction{}, false
	}

	start := time.Now()
	pred, err := h.predictor.PredictBudget(ctx, f)
	if err != nil {
		metrics.RecordPrediction("chain", time.Since(start), err)
		logging.Ctx(ctx).Warn().Err(err).Str("destination", f.Destination).Msg("budget prediction failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Budget prediction unavailable"})
		return services.Prediction{}, false
	}
	metrics.RecordPrediction("chain", time.Since(start), nil)
	return pred, true
}

func (h *Handler) Budget(c *gin.Context) {
	var req TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.NumDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "num_days must be a positive integer"})
		return
	}

	f := req.features()
	pred, ok := h.predict(c, f)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, services.Summarize(f, pred))
}
