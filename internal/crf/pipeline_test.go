package crf

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func testConfig() Config {
	costs := NewVolume(3, 4, 5)
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			costs.Set(0, r, c, 0.2)
			costs.Set(1, r, c, 0.7)
			costs.Set(2, r, c, 0.1)
		}
	}

	params := DefaultParams()
	params.Iters = 3

	return Config{
		Costs:   costs,
		Image:   uniformImage(4, 5),
		Samples: []float64{1, 2, 4},
		Params:  params,
		Filter:  FilterLattice,
	}
}

func TestRunProducesDepthMap(t *testing.T) {
	cfg := testConfig()
	cfg.ShowWTA = true
	before := cfg.Costs.Clone()

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Depth.H != 4 || res.Depth.W != 5 {
		t.Fatalf("Depth map size mismatch: got %dx%d, want 4x5", res.Depth.H, res.Depth.W)
	}
	for i, d := range res.Depth.Depth {
		if d != 2 {
			t.Errorf("Pixel %d depth mismatch: got %f, want 2", i, d)
		}
	}
	if res.WTA == nil {
		t.Fatal("Expected WTA map")
	}
	if res.WTA.Depth[0] != 4 {
		t.Errorf("WTA depth mismatch: got %f, want 4 (lowest cost)", res.WTA.Depth[0])
	}
	if res.Iterations != 3 {
		t.Errorf("Expected 3 iterations, got %d", res.Iterations)
	}

	for i := range before.Data {
		if before.Data[i] != cfg.Costs.Data[i] {
			t.Fatalf("Run modified the input cost volume at %d", i)
		}
	}
}

func TestRunDegeneratePixel(t *testing.T) {
	cfg := testConfig()
	for l := 0; l < cfg.Costs.L; l++ {
		cfg.Costs.Set(l, 0, 0, 0)
	}

	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Degenerate != 1 {
		t.Errorf("Expected 1 degenerate pixel, got %d", res.Degenerate)
	}
	for i, v := range res.Depth.Scaled() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Pixel %d not finite: %f", i, v)
		}
	}
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		shape  bool
	}{
		{name: "image size", mutate: func(c *Config) { c.Image = uniformImage(3, 5) }, shape: true},
		{name: "sample count", mutate: func(c *Config) { c.Samples = []float64{1, 2} }, shape: true},
		{name: "volume data", mutate: func(c *Config) { c.Costs.Data = c.Costs.Data[:10] }, shape: true},
		{name: "zero iters", mutate: func(c *Config) { c.Params.Iters = 0 }},
		{name: "pos_std length", mutate: func(c *Config) { c.Params.PosStd = []float64{1, 2, 3} }},
		{name: "rgb_std length", mutate: func(c *Config) { c.Params.RGBStd = []float64{1, 2} }},
		{name: "negative pos_std", mutate: func(c *Config) { c.Params.PosStd = []float64{-1} }},
		{name: "nan weight", mutate: func(c *Config) { c.Params.Weight = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := Run(cfg)
			if err == nil {
				t.Fatal("Expected error")
			}

			var shapeErr *ShapeError
			var paramErr *ParamError
			if tt.shape && !errors.As(err, &shapeErr) {
				t.Errorf("Expected ShapeError, got %v", err)
			}
			if !tt.shape && !errors.As(err, &paramErr) {
				t.Errorf("Expected ParamError, got %v", err)
			}
		})
	}
}

func TestRunExactMatchesLatticeOnEasyInput(t *testing.T) {
	lattice := testConfig()
	exact := testConfig()
	exact.Filter = FilterExact

	a, err := Run(lattice)
	if err != nil {
		t.Fatalf("Run(lattice) failed: %v", err)
	}
	b, err := Run(exact)
	if err != nil {
		t.Fatalf("Run(exact) failed: %v", err)
	}

	for i := range a.Depth.Depth {
		if a.Depth.Depth[i] != b.Depth.Depth[i] {
			t.Errorf("Pixel %d: lattice %f vs exact %f", i, a.Depth.Depth[i], b.Depth.Depth[i])
		}
	}
}

func TestParseFilterKind(t *testing.T) {
	tests := []struct {
		in   string
		want FilterKind
		err  bool
	}{
		{in: "", want: FilterLattice},
		{in: "Permutohedral", want: FilterLattice},
		{in: " exact ", want: FilterExact},
		{in: "gpu", err: true},
	}

	for _, tt := range tests {
		got, err := ParseFilterKind(tt.in)
		if tt.err {
			if !errors.Is(err, ErrUnknownFilter) {
				t.Errorf("ParseFilterKind(%q): expected ErrUnknownFilter, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFilterKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

// stepEdgeConfig builds an h×w problem whose left half prefers label 1 and
// right half label 4 of six, with every seventh pixel's unary flipped to a
// wrong neighbour and colour noise on the reference image.
func stepEdgeConfig(h, w int) Config {
	rng := rand.New(rand.NewSource(21))
	const labels = 6

	costs := NewVolume(labels, h, w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			truth, wrong := 1, 3
			if c >= w/2 {
				truth, wrong = 4, 2
			}
			for l := 0; l < labels; l++ {
				costs.Set(l, r, c, 0.1+0.05*rng.Float64())
			}
			costs.Set(truth, r, c, 0.4)
			if (r*w+c)%7 == 0 {
				costs.Set(wrong, r, c, 0.45)
			}
		}
	}

	params := DefaultParams()
	params.Iters = 5

	return Config{
		Costs:   costs,
		Image:   twoRegionImage(rng, h, w, 5),
		Samples: []float64{1, 2, 3, 4, 5, 6},
		Params:  params,
		Filter:  FilterLattice,
	}
}

func TestRunLatticeMatchesExactOnStepEdge(t *testing.T) {
	lattice := stepEdgeConfig(20, 20)
	exact := stepEdgeConfig(20, 20)
	exact.Filter = FilterExact

	a, err := Run(lattice)
	if err != nil {
		t.Fatalf("Run(lattice) failed: %v", err)
	}
	b, err := Run(exact)
	if err != nil {
		t.Fatalf("Run(exact) failed: %v", err)
	}

	differ := 0
	for i := range a.Depth.Depth {
		if a.Depth.Depth[i] != b.Depth.Depth[i] {
			differ++
		}
	}
	if limit := len(a.Depth.Depth) / 100; differ > limit {
		t.Errorf("%d of %d labels differ between lattice and exact, limit %d", differ, len(a.Depth.Depth), limit)
	}

	// Pixel (5,5) has a flipped unary; both filters restore the region's label.
	i := 5*20 + 5
	if a.Depth.Depth[i] != 2 || b.Depth.Depth[i] != 2 {
		t.Errorf("Outlier at (5,5) not smoothed: lattice %f, exact %f, want 2", a.Depth.Depth[i], b.Depth.Depth[i])
	}
}
