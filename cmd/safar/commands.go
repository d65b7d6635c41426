package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"safar/config"
	"safar/itinerary"
	"safar/logging"
	"safar/services"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize DESTINATION",
	Short: "Pick the best itinerary for a trip",
	Long: `Generate the balanced, high-intensity and relaxed itineraries for a trip,
score them against the predicted budget and print the result as JSON.

Without --budget the budget is predicted by the configured model, falling
back to the heuristic estimate.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

var budgetCmd = &cobra.Command{
	Use:   "budget DESTINATION",
	Short: "Predict a trip budget and its breakdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudget,
}

func init() {
	for _, c := range []*cobra.Command{optimizeCmd, budgetCmd} {
		c.Flags().Int("days", 4, "Trip length in days")
		c.Flags().Int("people", 1, "Number of travellers")
		c.Flags().String("season", "", "Season (e.g. Winter, Summer)")
		c.Flags().String("comfort", "", "Comfort level: Budget, Standard or Luxury")
		c.Flags().String("trip-type", "", "Trip type (e.g. Adventure, Cultural)")
		c.Flags().Float64("airport-distance", 0, "Distance from the nearest airport in km")
	}
	optimizeCmd.Flags().Float64("budget", -1, "Use this predicted budget instead of calling the predictor")
	optimizeCmd.Flags().Float64("daily-budget", 0, "Daily budget preference (default from config)")
	optimizeCmd.Flags().StringSlice("high-risk", nil, "Extra high-risk destinations")
}

func featuresFromFlags(cmd *cobra.Command, destination string) services.TripFeatures {
	f := services.TripFeatures{Destination: destination}
	f.NumDays, _ = cmd.Flags().GetInt("days")
	f.NumPeople, _ = cmd.Flags().GetInt("people")
	f.Season, _ = cmd.Flags().GetString("season")
	f.ComfortLevel, _ = cmd.Flags().GetString("comfort")
	f.TripType, _ = cmd.Flags().GetString("trip-type")
	f.AirportDistanceKm, _ = cmd.Flags().GetFloat64("airport-distance")
	return f
}

// predictorFor builds the model client, when configured, in front of the
// heuristic estimate.
func predictorFor(cfg *config.Config) services.BudgetPredictor {
	var model services.BudgetPredictor
	if cfg.Predictor.URL != "" {
		model = services.NewRemotePredictor(services.RemoteConfig{
			URL:             cfg.Predictor.URL,
			APIKey:          cfg.Predictor.APIKey,
			Timeout:         cfg.Predictor.Timeout,
			RatePerSecond:   cfg.Predictor.RatePerSecond,
			Burst:           cfg.Predictor.Burst,
			BreakerFailures: cfg.Predictor.BreakerFailures,
			BreakerTimeout:  cfg.Predictor.BreakerTimeout,
		}, logging.Logger())
	}
	return services.NewFallbackPredictor(model, services.HeuristicPredictor{}, logging.Logger())
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)
	f := featuresFromFlags(cmd, args[0])

	pred := services.Prediction{Source: services.SourceProvided}
	pred.Amount, _ = cmd.Flags().GetFloat64("budget")
	if pred.Amount < 0 {
		if f.NumDays <= 0 {
			return fmt.Errorf("optimize: --days must be positive: %w", itinerary.ErrInvalidTripLength)
		}
		var err error
		if pred, err = predictorFor(cfg).PredictBudget(ctx, f); err != nil {
			return fmt.Errorf("optimize: %w", err)
		}
	}

	extra, _ := cmd.Flags().GetStringSlice("high-risk")
	safety, err := services.LoadSafetyRules(cfg.Safety.RulesPath, append(cfg.Safety.HighRiskDestinations, extra...))
	if err != nil {
		return err
	}
	logging.Debug().Strs("high_risk_destinations", safety.Destinations()).Msg("safety rules loaded")

	daily, _ := cmd.Flags().GetFloat64("daily-budget")
	res, err := itinerary.NewOptimizer(cfg.Optimizer.DefaultDailyBudget, logging.Logger()).Optimize(ctx, itinerary.Request{
		Destination:      f.Destination,
		NumDays:          f.NumDays,
		BudgetPrediction: pred.Amount,
		Preferences:      itinerary.Preferences{DailyBudget: daily},
		Safety:           safety,
	})
	if err != nil {
		return err
	}
	res.BudgetSource = pred.Source

	return printJSON(cmd.OutOrStdout(), res)
}

func runBudget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := featuresFromFlags(cmd, args[0])
	if f.NumDays <= 0 {
		return fmt.Errorf("budget: --days must be positive: %w", itinerary.ErrInvalidTripLength)
	}

	pred, err := predictorFor(configFrom(ctx)).PredictBudget(ctx, f)
	if err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), services.Summarize(f, pred))
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
