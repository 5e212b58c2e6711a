package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/plot"
)

var (
	curveConfig = kinematics.DefaultCurveConfig()
	curvePNG    string
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Print acceleration curve data",
	Long:  "Compute an acceleration curve (velocity in km/h, acceleration in m/s²) and print it as JSON, or write it as a PNG chart with --png.",
	Args:  cobra.NoArgs,
	RunE:  runCurve,
}

func init() {
	rootCmd.AddCommand(curveCmd)
	f := curveCmd.Flags()
	f.Float64Var(&curveConfig.LinearVelocityThreshold, "threshold", curveConfig.LinearVelocityThreshold, "velocity up to which acceleration is constant (km/h)")
	f.Float64Var(&curveConfig.InitialAcceleration, "initial", curveConfig.InitialAcceleration, "initial acceleration (m/s²)")
	f.Float64Var(&curveConfig.VelocityIncrement, "increment", curveConfig.VelocityIncrement, "velocity step between samples (km/h)")
	f.Float64Var(&curveConfig.LossFactor, "loss", curveConfig.LossFactor, "loss factor past the threshold")
	f.Float64Var(&curveConfig.MaxVelocity, "max", curveConfig.MaxVelocity, "maximum velocity (km/h)")
	f.StringVar(&curvePNG, "png", "", "write the curve chart to this file instead of printing JSON")
}

func runCurve(cmd *cobra.Command, _ []string) error {
	c, err := kinematics.NewAccelerationCurve(curveConfig)
	if err != nil {
		return fmt.Errorf("invalid curve: %w", err)
	}

	if curvePNG != "" {
		f, err := os.Create(curvePNG)
		if err != nil {
			return fmt.Errorf("cannot create png: %w", err)
		}
		defer f.Close()
		return plot.WriteCurve(f, c.Data())
	}

	return json.NewEncoder(cmd.OutOrStdout()).Encode(c.Data())
}
