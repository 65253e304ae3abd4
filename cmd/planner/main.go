package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"situatedbeam/internal/config"
	"situatedbeam/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Grammar-constrained beam search for situated robot plans",
	Long: `planner searches token sequences that decode into structured robot action
trees, then keeps only the plans that respect the warehouse connectivity graph
and the currently occupied nodes.

The next-token distribution comes from an oracle: a model server over HTTP or
a fixed token script for offline runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.DebugMode = true
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(loaded.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logging.Boot("loaded config from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// searchCmd runs beam search and validates the result
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search plans for a context and keep the feasible ones",
	Long: `Runs grammar-constrained beam search for the given context tokens, then
validates every finished beam against the graph and the occupied nodes.

Example:
  planner search --context 3,4 --action MOVE --initial 1 --occupied 5,7
  planner search --context 3,4 --script 1,6,6,7,... --store`,
	RunE: runSearch,
}

// validateCmd validates beams from a file
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate beams stored in a YAML file",
	Long: `Decodes and checks each beam listed in the file and prints a verdict per
beam. The file may carry its own situation:

  action: MOVE
  initial_node: 1
  occupied: [5, 7]
  beams:
    - tokens: [1, 6, 6, 7, ...]
      score: 0.42`,
	RunE: runValidate,
}

// graphCmd prints adjacency and reachability
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the connectivity graph and the nodes reachable under an occupied set",
	RunE:  runGraph,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "planner.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	registerSearchFlags(searchCmd)
	registerValidateFlags(validateCmd)
	registerGraphFlags(graphCmd)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
