package main

import (
	"fmt"

	"github.com/cwbudde/densedepth/internal/config"
	"github.com/cwbudde/densedepth/internal/imaging"
	"github.com/cwbudde/densedepth/internal/opt"
	"github.com/cwbudde/densedepth/internal/tune"
	"github.com/spf13/cobra"
)

var (
	tuneInputs    inputFlags
	truthPath     string
	tuneIters     int
	tunePop       int
	tuneSeed      int64
	tuneCost      string
	tuneConfigOut string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search CRF parameters against a ground-truth depth map",
	Long: `Runs a Mayfly search over weight, max penalty and the colour and spatial
bandwidths, scoring each candidate depth map against a ground-truth PNG.`,
	RunE: runTune,
}

func init() {
	tuneInputs.register(tuneCmd)
	tuneCmd.Flags().StringVar(&truthPath, "truth", "", "Ground-truth depth PNG, rescaled the same way as the output (required)")
	tuneCmd.Flags().IntVar(&tuneIters, "search-iters", 20, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 20, "Population size (minimum 20)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Random seed")
	tuneCmd.Flags().StringVar(&tuneCost, "cost", "mse", "Cost function: mse or mae")
	tuneCmd.Flags().StringVar(&tuneConfigOut, "write-config", "", "Write the config with the best parameters to this path")

	tuneCmd.MarkFlagRequired("truth")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cost, ok := tune.ParseCost(tuneCost)
	if !ok {
		return fmt.Errorf("unknown cost function %q", tuneCost)
	}

	in, err := loadInputs(cmd, &tuneInputs)
	if err != nil {
		return err
	}
	truth, err := imaging.LoadGray(truthPath, in.crf.Costs.W, in.crf.Costs.H)
	if err != nil {
		return err
	}

	tuner := &tune.Tuner{
		Base:      in.crf,
		Truth:     truth,
		Bounds:    tune.DefaultBounds(),
		Cost:      cost,
		Optimizer: opt.NewMayfly(tuneIters, tunePop, tuneSeed),
	}
	result, err := tuner.Run()
	if err != nil {
		return err
	}

	fmt.Printf("Best cost:   %.4f (initial %.4f, %d evaluations)\n", result.BestCost, result.InitialCost, result.Evaluations)
	fmt.Printf("--wt %g --max-p %g --c-std %s --p-std %s\n",
		result.Best.Weight, result.Best.MaxPenalty, formatStd(result.Best.RGBStd), formatStd(result.Best.PosStd))

	if tuneConfigOut == "" {
		return nil
	}
	out := in.cfg
	out.CRF.Weight = result.Best.Weight
	out.CRF.MaxPenalty = result.Best.MaxPenalty
	out.CRF.RGBStd = result.Best.RGBStd
	out.CRF.PosStd = result.Best.PosStd
	if err := config.Save(tuneConfigOut, out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", tuneConfigOut)
	return nil
}
