package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"safar/itinerary"
	"safar/logging"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// ─── Models ──────────────────────────────────────────────────────────────────

// Run is one served optimisation result.
type Run struct {
	ID                  string            `json:"id"`
	Destination         string            `json:"destination"`
	NumDays             int               `json:"num_days"`
	NumPeople           int               `json:"num_people"`
	ComfortLevel        string            `json:"comfort_level"`
	BudgetPrediction    float64           `json:"budget_prediction"`
	BudgetSource        string            `json:"budget_source"`
	SelectedCandidateID int               `json:"selected_candidate_id"`
	Score               float64           `json:"score"`
	Result              *itinerary.Result `json:"result"`
	PDFData             []byte            `json:"-"`
	TravelerName        string            `json:"traveler_name,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// NewRun builds a Run from a result and the party it was planned for; the
// result's RunID becomes the run id.
func NewRun(res *itinerary.Result, numPeople int, comfortLevel string) *Run {
	return &Run{
		ID:                  res.RunID,
		Destination:         res.Destination,
		NumDays:             res.NumDays,
		NumPeople:           numPeople,
		ComfortLevel:        comfortLevel,
		BudgetPrediction:    res.BudgetPrediction,
		BudgetSource:        res.BudgetSource,
		SelectedCandidateID: res.Selected.Candidate.ID(),
		Score:               res.Selected.ItineraryScore,
		Result:              res,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store persists optimisation runs in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Drivers accepted by Open: lib/pq registers "postgres", pgx registers "pgx".
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects, waits for the database to accept connections and migrates.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*Store, error) {
	if driver != DriverPQ && driver != DriverPGX {
		return nil, fmt.Errorf("open database: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := NewStore(db, logger)

	// The database may still be starting when the service boots.
	for i := 1; i <= connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		s.logger.Info().Int("attempt", i).Err(err).Msg("waiting for database")

		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("open database: %w", ctx.Err())
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open database: connect after %d attempts: %w", connectAttempts, err)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info().Str("driver", driver).Msg("database connected and migrated")
	return s, nil
}

//nolint:gocritic // zerolog.Logger is passed by value by design
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "database").Logger()}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Migrations ──────────────────────────────────────────────────────────────

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS optimization_runs (
		id                    TEXT PRIMARY KEY,
		destination           TEXT NOT NULL,
		num_days              INTEGER NOT NULL,
		num_people            INTEGER NOT NULL DEFAULT 1,
		comfort_level         TEXT NOT NULL DEFAULT '',
		budget_prediction     NUMERIC(14,2) NOT NULL,
		budget_source         TEXT NOT NULL DEFAULT '',
		selected_candidate_id INTEGER NOT NULL,
		score                 NUMERIC(5,3) NOT NULL,
		result_json           TEXT NOT NULL,
		pdf_data              BYTEA,
		traveler_name         TEXT,
		created_at            TIMESTAMPTZ DEFAULT NOW()
	)`,

	`ALTER TABLE optimization_runs ADD COLUMN IF NOT EXISTS num_people INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE optimization_runs ADD COLUMN IF NOT EXISTS comfort_level TEXT NOT NULL DEFAULT ''`,

	`CREATE INDEX IF NOT EXISTS idx_optimization_runs_created_at
		ON optimization_runs(created_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_optimization_runs_destination
		ON optimization_runs(destination)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

func (s *Store) SaveRun(ctx context.Context, run *Run) (err error) {
	defer logging.Time(ctx, "database.SaveRun")(&err)

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("save run: encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_runs (id, destination, num_days, num_people, comfort_level,
			budget_prediction, budget_source, selected_candidate_id, score, result_json,
			pdf_data, traveler_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.Destination, run.NumDays, run.NumPeople, run.ComfortLevel,
		run.BudgetPrediction, run.BudgetSource, run.SelectedCandidateID, run.Score, string(resultJSON),
		run.PDFData, run.TravelerName, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (_ *Run, err error) {
	defer logging.Time(ctx, "database.GetRun")(&err)

	run := &Run{}
	var resultJSON string
	var traveler sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, destination, num_days, num_people, comfort_level, budget_prediction, budget_source,
			selected_candidate_id, score, result_json, pdf_data, traveler_name, created_at
		FROM optimization_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.Destination, &run.NumDays, &run.NumPeople, &run.ComfortLevel,
			&run.BudgetPrediction, &run.BudgetSource, &run.SelectedCandidateID, &run.Score,
			&resultJSON, &run.PDFData, &traveler, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.TravelerName = traveler.String

	run.Result = &itinerary.Result{}
	if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
		return nil, fmt.Errorf("get run %s: decode result: %w", id, err)
	}
	return run, nil
}

func (s *Store) UpdateRunPDF(ctx context.Context, id string, pdfData []byte, travelerName string) (err error) {
	defer logging.Time(ctx, "database.UpdateRunPDF")(&err)

	res, err := s.db.ExecContext(ctx, `
		UPDATE optimization_runs SET pdf_data = $1, traveler_name = $2 WHERE id = $3`,
		pdfData, travelerName, id)
	if err != nil {
		return fmt.Errorf("update run pdf %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run pdf %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update run pdf %s: %w", id, ErrRunNotFound)
	}
	return nil
}
