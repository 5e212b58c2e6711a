// Command trip-engine simulates train round trips along a line.
//
// Without a subcommand it behaves like `trip-engine simulate`: it reads a
// SimulationInput JSON from a file argument (or stdin), runs the simulation, and
// writes the SimulationResult JSON to stdout.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cxd309/trip-engine/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "trip-engine",
	Short: "Train round-trip trajectory engine",
	Long: "trip-engine integrates a train's motion along a line of stations and back, " +
		"producing time, position and velocity series with a station schedule.",
	Args:          cobra.MaximumNArgs(1),
	RunE:          runSimulate,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine progress to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cliLogger logs to stderr so stdout stays clean for JSON output.
func cliLogger(cmd *cobra.Command) zerolog.Logger {
	env := "production"
	if verbose {
		env = "development"
	}
	return logging.SetupWithWriter(env, zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true})
}

// readInput returns the contents of the file named by args[0], or stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("error reading input: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return data, nil
}
