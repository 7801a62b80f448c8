package main

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/densedepth/internal/crf"
	"github.com/cwbudde/densedepth/internal/imaging"
	"github.com/cwbudde/densedepth/internal/store"
	"github.com/spf13/cobra"
)

var (
	runInputs  inputFlags
	outPath    string
	outDir     string
	showWTA    bool
	upsample   bool
	saveRun    bool
	runDataDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Label a cost volume with depths",
	Long: `Runs CRF inference over a cost volume and its reference image and writes
the depth map as an 8-bit PNG rescaled to [0, 255].`,
	RunE: runLabeling,
}

func init() {
	runInputs.register(runCmd)
	runCmd.Flags().StringVar(&outPath, "out", "", "Depth map path (default <out-dir>/cost_volume_<L>__<c-std>_depth_map.png)")
	runCmd.Flags().StringVar(&outDir, "out-dir", "output", "Directory for default output names")
	runCmd.Flags().BoolVar(&showWTA, "show-wta", false, "Also write the winner-take-all depth map")
	runCmd.Flags().BoolVar(&upsample, "upsample", false, "Upsample the depth map to 2cx x 2cy")
	runCmd.Flags().BoolVar(&saveRun, "save-run", false, "Record the run and its artifacts in the data directory")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Base directory for saved runs (default from config)")

	rootCmd.AddCommand(runCmd)
}

func runLabeling(cmd *cobra.Command, args []string) (err error) {
	in, err := loadInputs(cmd, &runInputs)
	if err != nil {
		return err
	}
	in.crf.ShowWTA = showWTA

	// Reject bad inputs before anything is written to the store.
	if err := in.crf.Validate(); err != nil {
		return err
	}

	var (
		fsStore *store.FSStore
		run     *store.Run
		trace   *store.TraceWriter
	)
	if saveRun {
		dataDir := in.cfg.DataDir
		if runDataDir != "" {
			dataDir = runDataDir
		}
		fsStore, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
		run = store.NewRun(runConfig(in))
		trace, err = store.NewTraceWriter(fsStore.BaseDir(), run.ID)
		if err != nil {
			return err
		}
		defer func() {
			trace.Close()
			if err == nil {
				return
			}
			// A directory without run.json is invisible to "runs list" and "runs clean".
			if rmErr := fsStore.DeleteRun(run.ID); rmErr != nil {
				slog.Warn("Failed to remove incomplete run", "run_id", run.ID, "error", rmErr)
			}
		}()

		in.crf.Observer = func(s crf.IterationStats) {
			entry := store.TraceEntry{
				Iteration: s.Iteration,
				MeanDelta: s.MeanDelta,
				MaxDelta:  s.MaxDelta,
				Timestamp: time.Now(),
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "error", err)
			}
		}
	}

	result, err := crf.Run(in.crf)
	if err != nil {
		return err
	}

	depthPath := outPath
	if depthPath == "" {
		depthPath = filepath.Join(outDir, defaultDepthName(in.crf.Costs.L, in.crf.Params.RGBStd))
	}
	depthImg := renderDepth(result.Depth, in)
	if err := writeImage(depthPath, depthImg); err != nil {
		return err
	}
	slog.Info("Depth map written", "path", depthPath)

	var wtaImg *image.Gray
	if result.WTA != nil {
		wtaPath := filepath.Join(filepath.Dir(depthPath), fmt.Sprintf("cost_volume_%d_wta.png", in.crf.Costs.L))
		wtaImg = renderDepth(result.WTA, in)
		if err := writeImage(wtaPath, wtaImg); err != nil {
			return err
		}
		slog.Info("Winner-take-all map written", "path", wtaPath)
	}

	if run == nil {
		return nil
	}

	run.Iterations = result.Iterations
	run.Converged = result.Converged
	run.MinDelta = result.MinDelta
	run.Degenerate = result.Degenerate
	run.ElapsedMS = result.Elapsed.Milliseconds()
	run.Depth = store.ComputeDepthStats(result.Depth.Depth)
	run.OutputPath = depthPath

	dir, err := fsStore.RunDir(run.ID)
	if err != nil {
		return err
	}
	if err := imaging.WritePNG(filepath.Join(dir, "depth.png"), depthImg); err != nil {
		return err
	}
	if wtaImg != nil {
		if err := imaging.WritePNG(filepath.Join(dir, "wta.png"), wtaImg); err != nil {
			return err
		}
	}
	if err := trace.Flush(); err != nil {
		return err
	}
	if err := fsStore.SaveRun(run); err != nil {
		return err
	}

	fmt.Printf("Saved run %s\n", run.ID)
	return nil
}

func renderDepth(dm *crf.DepthMap, in *inputs) *image.Gray {
	g := dm.Gray()
	if !upsample {
		return g
	}
	w, h := int(2*in.cfg.Camera.Cx), int(2*in.cfg.Camera.Cy)
	if w <= 0 || h <= 0 {
		slog.Warn("Skipping upsample: principal point not set", "cx", in.cfg.Camera.Cx, "cy", in.cfg.Camera.Cy)
		return g
	}
	return imaging.UpsampleDepth(g, w, h)
}

func writeImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return imaging.WritePNG(path, img)
}

func defaultDepthName(labels int, rgbStd []float64) string {
	return fmt.Sprintf("cost_volume_%d__%s_depth_map.png", labels, formatStd(rgbStd))
}

func formatStd(std []float64) string {
	parts := make([]string, len(std))
	for i, s := range std {
		parts[i] = strconv.FormatFloat(s, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func runConfig(in *inputs) store.RunConfig {
	p := in.crf.Params
	return store.RunConfig{
		CostPath:      runInputs.costsPath,
		ImagePath:     runInputs.imagePath,
		Labels:        in.crf.Costs.L,
		Height:        in.crf.Costs.H,
		Width:         in.crf.Costs.W,
		MinDepth:      in.cfg.MinDepth,
		MaxDepth:      in.cfg.MaxDepth,
		Iters:         p.Iters,
		PosStd:        p.PosStd,
		RGBStd:        p.RGBStd,
		Weight:        p.Weight,
		MaxPenalty:    p.MaxPenalty,
		Normalization: p.Normalization.String(),
		Filter:        string(in.crf.Filter),
	}
}
