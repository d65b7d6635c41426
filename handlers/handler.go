package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"safar/database"
	"safar/itinerary"
	"safar/services"
)

// RunStore persists optimisation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *database.Run) error
	GetRun(ctx context.Context, id string) (*database.Run, error)
	UpdateRunPDF(ctx context.Context, id string, pdfData []byte, travelerName string) error
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API handlers. Store may be nil, in
// which case runs are not persisted.
type Deps struct {
	Optimizer *itinerary.Optimizer
	Predictor services.BudgetPredictor
	Safety    itinerary.SafetyRules
	Store     RunStore
	Logger    zerolog.Logger
}

type Handler struct {
	optimizer *itinerary.Optimizer
	predictor services.BudgetPredictor
	safety    itinerary.SafetyRules
	store     RunStore
	logger    zerolog.Logger
}

//nolint:gocritic // hugeParam: Deps is built once at startup
func New(d Deps) *Handler {
	if d.Optimizer == nil {
		d.Optimizer = itinerary.NewOptimizer(itinerary.DefaultDailyBudget, d.Logger)
	}
	return &Handler{
		optimizer: d.Optimizer,
		predictor: d.Predictor,
		safety:    d.Safety,
		store:     d.Store,
		logger:    d.Logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/budget", h.Budget)
	r.POST("/optimize", h.Optimize)
	r.GET("/runs/:id", h.GetRun)
	r.GET("/runs/:id/handbook", h.Handbook)
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "disabled"
	if h.store != nil {
		dbStatus = "ok"
		if err := h.store.Ping(c.Request.Context()); err != nil {
			dbStatus = "error: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "Safar API",
		"database": dbStatus,
	})
}
