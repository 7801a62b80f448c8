package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/densedepth/internal/config"
	"github.com/cwbudde/densedepth/internal/volume"
	"github.com/spf13/cobra"
)

var (
	sampleCount int
	sampleMin   float64
	sampleMax   float64
	sampleFx    float64
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Print the depth value of every label",
	Long:  `Prints the inverse-depth sample table used to map labels to depths.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fl := cmd.Flags()
		if !fl.Changed("n") {
			sampleCount = cfg.NumSamples
		}
		if !fl.Changed("min-d") {
			sampleMin = cfg.MinDepth
		}
		if !fl.Changed("max-d") {
			sampleMax = cfg.MaxDepth
		}
		if !fl.Changed("fx") {
			sampleFx = cfg.Camera.Fx
		}

		samples, err := volume.InverseDepthSamples(sampleCount, sampleMin, sampleMax, sampleFx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tDEPTH\tVALUE")
		for i, v := range samples {
			fmt.Fprintf(w, "%d\t%.4f\t%.4f\n", i, sampleFx/v, v)
		}
		return w.Flush()
	},
}

func init() {
	def := config.Default()
	samplesCmd.Flags().IntVar(&sampleCount, "n", def.NumSamples, "Number of labels")
	samplesCmd.Flags().Float64Var(&sampleMin, "min-d", def.MinDepth, "Nearest depth")
	samplesCmd.Flags().Float64Var(&sampleMax, "max-d", def.MaxDepth, "Farthest depth")
	samplesCmd.Flags().Float64Var(&sampleFx, "fx", def.Camera.Fx, "Focal length in pixels")
	rootCmd.AddCommand(samplesCmd)
}
