// Package config loads the depth tool's JSON configuration.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/densedepth/internal/crf"
)

// Camera holds the pinhole intrinsics of the reference view.
type Camera struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// CRF mirrors crf.Params in a JSON-friendly form.
type CRF struct {
	Iters         int       `json:"iters"`
	PosStd        []float64 `json:"posStd"`
	RGBStd        []float64 `json:"rgbStd"`
	Weight        float64   `json:"weight"`
	MaxPenalty    float64   `json:"maxPenalty"`
	Normalization string    `json:"normalization"`
	Filter        string    `json:"filter"`

	EarlyStop struct {
		Enabled   bool    `json:"enabled"`
		Patience  int     `json:"patience"`
		Threshold float64 `json:"threshold"`
	} `json:"earlyStop"`
}

// Preprocess configures reference image preparation.
type Preprocess struct {
	Scale       int     `json:"scale"`
	MeanShiftSP int     `json:"meanShiftSp"`
	MeanShiftSR float64 `json:"meanShiftSr"`
}

// Config is the full tool configuration.
type Config struct {
	Camera     Camera     `json:"camera"`
	CRF        CRF        `json:"crf"`
	Preprocess Preprocess `json:"preprocess"`

	NumSamples int     `json:"numSamples"`
	MinDepth   float64 `json:"minDepth"`
	MaxDepth   float64 `json:"maxDepth"`

	// DataDir is where saved runs are stored.
	DataDir string `json:"dataDir"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := crf.DefaultParams()
	c := Config{
		Camera: Camera{Fx: 525, Fy: 525, Cx: 320, Cy: 240},
		CRF: CRF{
			Iters:         p.Iters,
			PosStd:        p.PosStd,
			RGBStd:        p.RGBStd,
			Weight:        p.Weight,
			MaxPenalty:    p.MaxPenalty,
			Normalization: p.Normalization.String(),
			Filter:        string(crf.FilterLattice),
		},
		Preprocess: Preprocess{Scale: 1, MeanShiftSP: 20, MeanShiftSR: 20},
		NumSamples: 64,
		MinDepth:   0.5,
		MaxDepth:   10,
		DataDir:    "./data",
	}
	conv := crf.DefaultConvergenceConfig()
	c.CRF.EarlyStop.Patience = conv.Patience
	c.CRF.EarlyStop.Threshold = conv.Threshold
	return c
}

// Load reads path and overlays it onto the defaults. Keys missing from the
// file keep their default values, including keys inside nested objects.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	def := Default()
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	return Parse(data)
}

// Parse overlays raw JSON onto the defaults.
func Parse(data []byte) (Config, error) {
	base, err := json.Marshal(Default())
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode defaults: %w", err)
	}

	var dst, src map[string]json.RawMessage
	if err := json.Unmarshal(base, &dst); err != nil {
		return Config{}, fmt.Errorf("failed to decode defaults: %w", err)
	}
	if err := json.Unmarshal(data, &src); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	deepMergeJSON(dst, src)

	merged, err := json.Marshal(dst)
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode merged config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(merged, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return c, nil
}

// Save writes c as indented JSON.
func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Params converts the CRF section into a validated parameter bundle.
func (c Config) Params() (crf.Params, error) {
	p := crf.Params{
		Iters:      c.CRF.Iters,
		PosStd:     append([]float64(nil), c.CRF.PosStd...),
		RGBStd:     append([]float64(nil), c.CRF.RGBStd...),
		Weight:     c.CRF.Weight,
		MaxPenalty: c.CRF.MaxPenalty,
		Convergence: crf.ConvergenceConfig{
			Enabled:   c.CRF.EarlyStop.Enabled,
			Patience:  c.CRF.EarlyStop.Patience,
			Threshold: c.CRF.EarlyStop.Threshold,
		},
	}

	norm, err := ParseNormalization(c.CRF.Normalization)
	if err != nil {
		return crf.Params{}, err
	}
	p.Normalization = norm

	if err := p.Validate(); err != nil {
		return crf.Params{}, err
	}
	return p, nil
}

// ParseNormalization maps a config string to a normalization mode.
func ParseNormalization(s string) (crf.Normalization, error) {
	switch s {
	case "", "symmetric":
		return crf.NormalizeSymmetric, nil
	case "none":
		return crf.NormalizeNone, nil
	default:
		return 0, &crf.ParamError{Field: "normalization", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj, srcObj map[string]json.RawMessage
			if err := json.Unmarshal(existing, &dstObj); err != nil {
				dst[k] = v
				continue
			}
			if err := json.Unmarshal(v, &srcObj); err != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}
