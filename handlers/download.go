package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"safar/database"
	"safar/itinerary"
	"safar/logging"
	"safar/services"
)

// RunResponse is a result as served by the API, with the budget split for
// the party it was planned for.
type RunResponse struct {
	*itinerary.Result
	BudgetBreakdown *services.BudgetSummary `json:"budget_breakdown,omitempty"`
	CreatedAt       *time.Time              `json:"created_at,omitempty"`
}

func newRunResponse(run *database.Run) RunResponse {
	resp := RunResponse{Result: run.Result}
	summary := runSummary(run)
	resp.BudgetBreakdown = &summary
	if !run.CreatedAt.IsZero() {
		created := run.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	return resp
}

func runSummary(run *database.Run) services.BudgetSummary {
	return services.Summarize(
		services.TripFeatures{
			Destination:  run.Destination,
			NumDays:      run.NumDays,
			NumPeople:    run.NumPeople,
			ComfortLevel: run.ComfortLevel,
		},
		services.Prediction{Amount: run.BudgetPrediction, Source: run.BudgetSource},
	)
}

// loadRun writes the error response itself and returns nil on failure.
func (h *Handler) loadRun(c *gin.Context) *database.Run {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing run ID"})
		return nil
	}
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run storage is disabled"})
		return nil
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return nil
	}
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("run_id", id).Msg("failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return nil
	}
	return run
}

func (h *Handler) GetRun(c *gin.Context) {
	run := h.loadRun(c)
	if run == nil {
		return
	}
	run.Result.RunID = run.ID
	c.JSON(http.StatusOK, newRunResponse(run))
}

// Handbook serves the run's PDF, rendering and storing it on first request
// or when a different traveler name is asked for.
func (h *Handler) Handbook(c *gin.Context) {
	ctx := c.Request.Context()
	run := h.loadRun(c)
	if run == nil {
		return
	}

	traveler := strings.TrimSpace(c.Query("traveler_name"))
	pdf := run.PDFData
	if len(pdf) == 0 || (traveler != "" && traveler != run.TravelerName) {
		if traveler == "" {
			traveler = run.TravelerName
		}

		run.Result.RunID = run.ID
		summary := runSummary(run)

		var err error
		pdf, err = services.GenerateHandbookPDF(services.HandbookData{
			TravelerName: traveler,
			Result:       run.Result,
			Budget:       &summary,
		})
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("run_id", run.ID).Msg("handbook generation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate handbook"})
			return
		}

		if err := h.store.UpdateRunPDF(ctx, run.ID, pdf, traveler); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("run_id", run.ID).Msg("failed to store handbook")
		}
		logging.Ctx(ctx).Info().Str("run_id", run.ID).Int("bytes", len(pdf)).Msg("handbook generated")
	}

	c.Header("Content-Disposition", "attachment; filename=safar-handbook.pdf")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdf)
}
