package volume

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/densedepth/internal/crf"
)

func createTestFile() *File {
	v := crf.NewVolume(3, 2, 4)
	for i := range v.Data {
		v.Data[i] = float64(i) * 0.5
	}
	return &File{Costs: v, MinDepth: 0.5, MaxDepth: 8}
}

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "raw", file: "costs.cvol"},
		{name: "zstd", file: "costs.cvol.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			want := createTestFile()

			if err := Save(path, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("Temp file should not exist after save")
			}

			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if got.Costs.L != 3 || got.Costs.H != 2 || got.Costs.W != 4 {
				t.Fatalf("Shape mismatch: got (%d,%d,%d)", got.Costs.L, got.Costs.H, got.Costs.W)
			}
			if got.MinDepth != want.MinDepth || got.MaxDepth != want.MaxDepth {
				t.Errorf("Depth range mismatch: got [%f, %f], want [%f, %f]", got.MinDepth, got.MaxDepth, want.MinDepth, want.MaxDepth)
			}
			for i := range want.Costs.Data {
				if got.Costs.Data[i] != want.Costs.Data[i] {
					t.Errorf("Cost %d mismatch: got %f, want %f", i, got.Costs.Data[i], want.Costs.Data[i])
				}
			}
		})
	}
}

func TestSaveCompresses(t *testing.T) {
	dir := t.TempDir()
	v := crf.NewVolume(16, 32, 32)
	vf := &File{Costs: v, MinDepth: 1, MaxDepth: 2}

	raw := filepath.Join(dir, "a.cvol")
	packed := filepath.Join(dir, "a.cvol.zst")
	if err := Save(raw, vf); err != nil {
		t.Fatalf("Save raw failed: %v", err)
	}
	if err := Save(packed, vf); err != nil {
		t.Fatalf("Save zstd failed: %v", err)
	}

	rawInfo, _ := os.Stat(raw)
	packedInfo, _ := os.Stat(packed)
	if packedInfo.Size() >= rawInfo.Size() {
		t.Errorf("Compressed file (%d B) not smaller than raw (%d B)", packedInfo.Size(), rawInfo.Size())
	}
}

func TestDecodeRejectsCorruptStreams(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, createTestFile()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	good := buf.Bytes()

	badMagic := append([]byte{}, good...)
	badMagic[0] = 'X'

	truncated := good[:len(good)-3]

	negative := append([]byte{}, good...)
	// First cost value: flip the sign bit of a non-zero float32 (index 1 = 0.5).
	negative[36+4+3] |= 0x80

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "bad magic", data: badMagic},
		{name: "truncated", data: truncated},
		{name: "negative cost", data: negative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Expected FormatError, got %v", err)
			}
		})
	}
}

func TestInverseDepthSamples(t *testing.T) {
	samples, err := InverseDepthSamples(5, 1, 4, 2)
	if err != nil {
		t.Fatalf("InverseDepthSamples failed: %v", err)
	}

	if len(samples) != 5 {
		t.Fatalf("Expected 5 samples, got %d", len(samples))
	}
	if math.Abs(samples[0]-2) > 1e-12 {
		t.Errorf("First sample mismatch: got %f, want fx/min = 2", samples[0])
	}
	if math.Abs(samples[4]-0.5) > 1e-12 {
		t.Errorf("Last sample mismatch: got %f, want fx/max = 0.5", samples[4])
	}

	// fx/s is linear in i: consecutive differences are equal.
	step := samples[1] - samples[0]
	for i := 1; i < len(samples); i++ {
		if d := samples[i] - samples[i-1]; math.Abs(d-step) > 1e-12 {
			t.Errorf("Step %d mismatch: got %f, want %f", i, d, step)
		}
		if samples[i] >= samples[i-1] {
			t.Errorf("Samples not strictly decreasing at %d", i)
		}
	}
}

func TestInverseDepthSamplesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		lo, hi, fx float64
	}{
		{name: "too few", n: 1, lo: 1, hi: 2, fx: 1},
		{name: "zero min", n: 4, lo: 0, hi: 2, fx: 1},
		{name: "max below min", n: 4, lo: 3, hi: 2, fx: 1},
		{name: "zero fx", n: 4, lo: 1, hi: 2, fx: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := InverseDepthSamples(tt.n, tt.lo, tt.hi, tt.fx); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
