package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cxd309/trip-engine/internal/engine"
)

var simulatePretty bool

var simulateCmd = &cobra.Command{
	Use:   "simulate [input.json]",
	Short: "Run a simulation and print the result JSON",
	Long:  "Read a SimulationInput JSON from the given file (or stdin), run the round trip, and write the SimulationResult JSON to stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	for _, c := range []*cobra.Command{rootCmd, simulateCmd} {
		c.Flags().BoolVar(&simulatePretty, "pretty", false, "indent the output")
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	res, err := simulateInput(cmd, args)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if simulatePretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	return nil
}

func simulateInput(cmd *cobra.Command, args []string) (engine.SimulationResult, error) {
	data, err := readInput(cmd, args)
	if err != nil {
		return engine.SimulationResult{}, err
	}

	var input engine.SimulationInput
	if err := json.Unmarshal(data, &input); err != nil {
		return engine.SimulationResult{}, fmt.Errorf("invalid input JSON: %w", err)
	}

	res, err := engine.Run(input, cliLogger(cmd))
	if err != nil {
		return engine.SimulationResult{}, fmt.Errorf("simulation error: %w", err)
	}
	return res, nil
}
