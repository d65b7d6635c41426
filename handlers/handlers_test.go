package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safar/database"
	"safar/itinerary"
	"safar/services"
)

type memStore struct {
	mu      sync.Mutex
	runs    map[string]*database.Run
	saveErr error
	pingErr error
}

func newMemStore() *memStore { return &memStore{runs: map[string]*database.Run{}} }

func (m *memStore) SaveRun(_ context.Context, run *database.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) GetRun(_ context.Context, id string) (*database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, database.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) UpdateRunPDF(_ context.Context, id string, pdf []byte, traveler string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return database.ErrRunNotFound
	}
	run.PDFData = pdf
	run.TravelerName = traveler
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

type fixedPredictor struct {
	pred  services.Prediction
	err   error
	calls int
}

func (f *fixedPredictor) PredictBudget(context.Context, services.TripFeatures) (services.Prediction, error) {
	f.calls++
	return f.pred, f.err
}

func newTestRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	d.Logger = zerolog.Nop()
	if d.Optimizer == nil {
		d.Optimizer = itinerary.NewOptimizer(5000, zerolog.Nop())
	}
	r := gin.New()
	r.Use(RequestLogger())
	New(d).Register(r.Group("/api"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type resultWire struct {
	RunID            string  `json:"run_id"`
	Destination      string  `json:"destination"`
	BudgetPrediction float64 `json:"budget_prediction"`
	BudgetSource     string  `json:"budget_source"`
	SafetyCompliant  bool    `json:"safety_compliant"`
	Candidates       []struct {
		ItineraryScore float64 `json:"itinerary_score"`
	} `json:"candidates"`
	Selected struct {
		Candidate struct {
			CandidateID int `json:"candidate_id"`
		} `json:"candidate"`
		ItineraryScore float64 `json:"itinerary_score"`
	} `json:"selected_itinerary"`
	Explanation string `json:"explanation"`
}

func TestOptimize_PredictsAndPersists(t *testing.T) {
	store := newMemStore()
	pred := &fixedPredictor{pred: services.Prediction{Amount: 35000, Source: services.SourceModel}}
	r := newTestRouter(Deps{Predictor: pred, Store: store, Safety: itinerary.NewHighRiskSet("Chadar Trek")})

	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination":      "Hampta Pass",
		"num_days":         5,
		"user_preferences": map[string]any{"daily_budget": 5000},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var got resultWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, pred.calls)
	assert.Equal(t, "model", got.BudgetSource)
	assert.True(t, got.SafetyCompliant)
	require.Len(t, got.Candidates, 3)
	assert.Equal(t, 0.971, got.Candidates[0].ItineraryScore)
	assert.Equal(t, 3, got.Selected.Candidate.CandidateID)
	assert.NotEmpty(t, got.RunID)
	assert.Contains(t, store.runs, got.RunID)
}

func TestOptimize_ProvidedBudgetSkipsPredictor(t *testing.T) {
	pred := &fixedPredictor{}
	r := newTestRouter(Deps{Predictor: pred, Safety: itinerary.NewHighRiskSet("Hampta Pass")})

	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination":       "Hampta Pass",
		"num_days":          5,
		"budget_prediction": 35000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got resultWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Zero(t, pred.calls)
	assert.Equal(t, "provided", got.BudgetSource)
	assert.False(t, got.SafetyCompliant)
	assert.Equal(t, 0.614, got.Selected.ItineraryScore)
	assert.Empty(t, got.RunID, "no store, no run id")
}

func TestOptimize_InvalidInput(t *testing.T) {
	r := newTestRouter(Deps{Predictor: &fixedPredictor{pred: services.Prediction{Amount: 1000}}})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing destination", map[string]any{"num_days": 3}},
		{"zero days", map[string]any{"destination": "Kasol", "num_days": 0}},
		{"zero days with budget", map[string]any{"destination": "Kasol", "num_days": 0, "budget_prediction": 1000}},
		{"negative budget", map[string]any{"destination": "Kasol", "num_days": 3, "budget_prediction": -1}},
		{"unknown comfort", map[string]any{"destination": "Kasol", "num_days": 3, "comfort_level": "Palatial"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/optimize", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestOptimize_PredictionUnavailable(t *testing.T) {
	r := newTestRouter(Deps{Predictor: &fixedPredictor{err: services.ErrPredictionUnavailable}})
	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{"destination": "Kasol", "num_days": 3})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	r = newTestRouter(Deps{})
	w = doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{"destination": "Kasol", "num_days": 3})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestOptimize_SaveFailureStillAnswers(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("db down")
	r := newTestRouter(Deps{Store: store})

	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination": "Kasol", "num_days": 3, "budget_prediction": 15000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var got resultWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.RunID)
}

func TestBudget(t *testing.T) {
	r := newTestRouter(Deps{Predictor: services.HeuristicPredictor{}})

	w := doJSON(t, r, http.MethodPost, "/api/budget", map[string]any{
		"destination": "Manali", "num_days": 4, "num_people": 2, "comfort_level": "Budget",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got services.BudgetSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 36000.0, got.Total)
	assert.Equal(t, 18000.0, got.PerPerson)
	assert.Equal(t, 9000.0, got.PerDay)
	assert.Equal(t, "estimated", got.Source)
	assert.Equal(t, got.Total, got.Breakdown.Stay+got.Breakdown.Travel+got.Breakdown.Food+got.Breakdown.Activities)

	w = doJSON(t, r, http.MethodPost, "/api/budget", map[string]any{"destination": "Manali"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunAndHandbook(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(Deps{Store: store})

	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination": "Hampta Pass", "num_days": 5, "budget_prediction": 35000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var created resultWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodGet, "/api/runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fetched resultWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	w = doJSON(t, r, http.MethodGet, "/api/runs/"+created.RunID+"/handbook?traveler_name=Asha", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, "Asha", store.runs[created.RunID].TravelerName)
	assert.NotEmpty(t, store.runs[created.RunID].PDFData)

	w = doJSON(t, r, http.MethodGet, "/api/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/runs/does-not-exist/handbook", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunBudgetBreakdown_LuxuryGroup(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(Deps{Store: store})

	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination": "Manali", "num_days": 4, "num_people": 2, "comfort_level": "Luxury",
		"budget_prediction": 40000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	type runWire struct {
		RunID           string                 `json:"run_id"`
		BudgetBreakdown services.BudgetSummary `json:"budget_breakdown"`
		CreatedAt       time.Time              `json:"created_at"`
	}
	var created runWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 2, created.BudgetBreakdown.NumPeople)
	assert.Equal(t, "Luxury", created.BudgetBreakdown.ComfortLevel)
	assert.Equal(t, 18000.0, created.BudgetBreakdown.Breakdown.Stay)
	assert.Equal(t, 20000.0, created.BudgetBreakdown.PerPerson)
	assert.False(t, created.CreatedAt.IsZero())

	stored := store.runs[created.RunID]
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.NumPeople)
	assert.Equal(t, "Luxury", stored.ComfortLevel)

	// The handbook renders from the same summary.
	summary := runSummary(stored)
	assert.Equal(t, created.BudgetBreakdown, summary)

	w = doJSON(t, r, http.MethodGet, "/api/runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fetched runWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.BudgetBreakdown, fetched.BudgetBreakdown)
	assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))
}

func TestOptimize_DefaultPartyWithoutStore(t *testing.T) {
	r := newTestRouter(Deps{})
	w := doJSON(t, r, http.MethodPost, "/api/optimize", map[string]any{
		"destination": "Kasol", "num_days": 3, "budget_prediction": 15000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"budget_breakdown"`)
	assert.Contains(t, w.Body.String(), `"comfort_level":"Standard"`)
	assert.Contains(t, w.Body.String(), `"per_person":15000`)
}

func TestGetRun_StorageDisabled(t *testing.T) {
	r := newTestRouter(Deps{})
	w := doJSON(t, r, http.MethodGet, "/api/runs/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	w := doJSON(t, newTestRouter(Deps{}), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"disabled"`)

	store := newMemStore()
	store.pingErr = errors.New("refused")
	w = doJSON(t, newTestRouter(Deps{Store: store}), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error: refused")
}

func TestRequestLogger_KeepsIncomingID(t *testing.T) {
	r := newTestRouter(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}
