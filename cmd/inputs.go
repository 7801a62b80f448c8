package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/densedepth/internal/config"
	"github.com/cwbudde/densedepth/internal/crf"
	"github.com/cwbudde/densedepth/internal/imaging"
	"github.com/cwbudde/densedepth/internal/volume"
	"github.com/spf13/cobra"
)

// inputFlags are shared by every command that runs the CRF.
type inputFlags struct {
	costsPath string
	imagePath string

	iters      int
	posStd     []float64
	rgbStd     []float64
	weight     float64
	maxPenalty float64
	filter     string
	earlyStop  bool

	nsamples int
	minDepth float64
	maxDepth float64
	fx       float64
	scale    int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	def := config.Default()
	fl := cmd.Flags()

	fl.StringVar(&f.costsPath, "costs", "", "Cost volume file (.cvol or .cvol.zst) (required)")
	fl.StringVar(&f.imagePath, "image", "", "Reference image path (required)")

	fl.IntVar(&f.iters, "iters", def.CRF.Iters, "Mean-field iterations")
	fl.Float64SliceVar(&f.posStd, "p-std", def.CRF.PosStd, "Spatial bandwidth: one value or x,y")
	fl.Float64SliceVar(&f.rgbStd, "c-std", def.CRF.RGBStd, "Colour bandwidth: one value or three")
	fl.Float64Var(&f.weight, "wt", def.CRF.Weight, "Penalty between adjacent labels")
	fl.Float64Var(&f.maxPenalty, "max-p", def.CRF.MaxPenalty, "Farthest-label penalty as a fraction of the label count")
	fl.StringVar(&f.filter, "filter", def.CRF.Filter, "Pairwise filter: lattice or exact")
	fl.BoolVar(&f.earlyStop, "early-stop", false, "Stop inference once the belief stops changing")

	fl.IntVar(&f.nsamples, "nsamples", 0, "Expected number of depth labels (0 = take from the cost volume)")
	fl.Float64Var(&f.minDepth, "min-d", def.MinDepth, "Nearest swept depth")
	fl.Float64Var(&f.maxDepth, "max-d", def.MaxDepth, "Farthest swept depth")
	fl.Float64Var(&f.fx, "fx", def.Camera.Fx, "Focal length in pixels")
	fl.IntVar(&f.scale, "scale", def.Preprocess.Scale, "Number of pyramid halvings applied to the reference image")

	cmd.MarkFlagRequired("costs")
	cmd.MarkFlagRequired("image")
}

// overlay copies explicitly set flags onto cfg.
func (f *inputFlags) overlay(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("iters") {
		cfg.CRF.Iters = f.iters
	}
	if fl.Changed("p-std") {
		cfg.CRF.PosStd = f.posStd
	}
	if fl.Changed("c-std") {
		cfg.CRF.RGBStd = f.rgbStd
	}
	if fl.Changed("wt") {
		cfg.CRF.Weight = f.weight
	}
	if fl.Changed("max-p") {
		cfg.CRF.MaxPenalty = f.maxPenalty
	}
	if fl.Changed("filter") {
		cfg.CRF.Filter = f.filter
	}
	if fl.Changed("early-stop") {
		cfg.CRF.EarlyStop.Enabled = f.earlyStop
	}
	if fl.Changed("min-d") {
		cfg.MinDepth = f.minDepth
	}
	if fl.Changed("max-d") {
		cfg.MaxDepth = f.maxDepth
	}
	if fl.Changed("fx") {
		cfg.Camera.Fx = f.fx
	}
	if fl.Changed("scale") {
		cfg.Preprocess.Scale = f.scale
	}
}

// inputs is a fully loaded labeling problem.
type inputs struct {
	cfg    config.Config
	crf    crf.Config
	volume *volume.File
}

func loadInputs(cmd *cobra.Command, f *inputFlags) (*inputs, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	f.overlay(cmd, &cfg)

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	kind, err := crf.ParseFilterKind(cfg.CRF.Filter)
	if err != nil {
		return nil, err
	}

	vf, err := volume.Load(f.costsPath)
	if err != nil {
		return nil, err
	}
	if f.nsamples > 0 && f.nsamples != vf.Costs.L {
		return nil, fmt.Errorf("--nsamples %d does not match the %d labels of %s", f.nsamples, vf.Costs.L, f.costsPath)
	}

	// The volume records the range it was swept over; explicit flags win.
	fl := cmd.Flags()
	if !fl.Changed("min-d") && vf.MinDepth > 0 {
		cfg.MinDepth = vf.MinDepth
	}
	if !fl.Changed("max-d") && vf.MaxDepth > 0 {
		cfg.MaxDepth = vf.MaxDepth
	}
	samples, err := volume.InverseDepthSamples(vf.Costs.L, cfg.MinDepth, cfg.MaxDepth, cfg.Camera.Fx)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Load(f.imagePath)
	if err != nil {
		return nil, err
	}
	ms := imaging.DefaultMeanShiftConfig()
	ms.SpatialRadius = cfg.Preprocess.MeanShiftSP
	ms.ColorRadius = cfg.Preprocess.MeanShiftSR
	lab := imaging.Prepare(img, imaging.PrepareConfig{Levels: cfg.Preprocess.Scale, MeanShift: ms})

	slog.Info("Inputs loaded",
		"costs", f.costsPath,
		"image", f.imagePath,
		"labels", vf.Costs.L,
		"width", vf.Costs.W,
		"height", vf.Costs.H,
		"min_depth", cfg.MinDepth,
		"max_depth", cfg.MaxDepth,
	)

	return &inputs{
		cfg: cfg,
		crf: crf.Config{
			Costs:   vf.Costs,
			Image:   lab,
			Samples: samples,
			Params:  params,
			Filter:  kind,
		},
		volume: vf,
	}, nil
}
