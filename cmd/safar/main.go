// Command safar runs itinerary optimisation and budget prediction from the
// command line using the same configuration as the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"safar/config"
	"safar/logging"
)

var rootCmd = &cobra.Command{
	Use:           "safar",
	Short:         "Trip budget prediction and itinerary optimisation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
		cmd.SetContext(withConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(optimizeCmd, budgetCmd)
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
