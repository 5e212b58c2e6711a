package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cxd309/trip-engine/internal/plot"
)

var plotOutDir string

var plotCmd = &cobra.Command{
	Use:   "plot [input.json]",
	Short: "Run a simulation and write position and velocity charts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlot,
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().StringVarP(&plotOutDir, "out", "o", ".", "directory to write position.png and velocity.png into")
}

func runPlot(cmd *cobra.Command, args []string) error {
	res, err := simulateInput(cmd, args)
	if err != nil {
		return err
	}

	paths, err := plot.SaveTrajectory(plotOutDir, res)
	if err != nil {
		return fmt.Errorf("writing plots: %w", err)
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
