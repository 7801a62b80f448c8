package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/cwbudde/densedepth/internal/crf"
	"github.com/klauspost/compress/zstd"
)

// File layout (little-endian):
//
//	magic    [4]byte "CVOL"
//	version  uint32
//	L, H, W  uint32
//	minDepth float64
//	maxDepth float64
//	costs    [L*H*W]float32, label-major
//
// The whole stream may be zstd-compressed.
var magic = [4]byte{'C', 'V', 'O', 'L'}

const (
	formatVersion = 1
	maxElements   = 1 << 30
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type header struct {
	Magic    [4]byte
	Version  uint32
	L, H, W  uint32
	MinDepth float64
	MaxDepth float64
}

// File is a cost volume together with the depth range it was swept over.
type File struct {
	Costs    *crf.Volume
	MinDepth float64
	MaxDepth float64
}

// FormatError reports a malformed cost volume stream.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid cost volume: " + e.Reason
}

// Encode writes f in the uncompressed format.
func Encode(w io.Writer, f *File) error {
	if f == nil || f.Costs == nil {
		return fmt.Errorf("cost volume cannot be nil")
	}
	if err := f.Costs.Validate("cost volume"); err != nil {
		return err
	}

	h := header{
		Magic:    magic,
		Version:  formatVersion,
		L:        uint32(f.Costs.L),
		H:        uint32(f.Costs.H),
		W:        uint32(f.Costs.W),
		MinDepth: f.MinDepth,
		MaxDepth: f.MaxDepth,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	plane := make([]float32, f.Costs.Pixels())
	for l := 0; l < f.Costs.L; l++ {
		for i, v := range f.Costs.Plane(l) {
			plane[i] = float32(v)
		}
		if err := binary.Write(w, binary.LittleEndian, plane); err != nil {
			return fmt.Errorf("failed to write label %d: %w", l, err)
		}
	}
	return nil
}

// Decode reads a cost volume, transparently handling zstd compression.
func Decode(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("short stream: %v", err)}
	}

	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	var h header
	if err := binary.Read(src, binary.LittleEndian, &h); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("failed to read header: %v", err)}
	}
	if h.Magic != magic {
		return nil, &FormatError{Reason: fmt.Sprintf("bad magic %q", h.Magic[:])}
	}
	if h.Version != formatVersion {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version %d", h.Version)}
	}
	if h.L == 0 || h.H == 0 || h.W == 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("empty shape (%d, %d, %d)", h.L, h.H, h.W)}
	}
	total := uint64(h.L) * uint64(h.H) * uint64(h.W)
	if total > maxElements {
		return nil, &FormatError{Reason: fmt.Sprintf("shape (%d, %d, %d) too large", h.L, h.H, h.W)}
	}

	v := crf.NewVolume(int(h.L), int(h.H), int(h.W))
	plane := make([]float32, v.Pixels())
	for l := 0; l < v.L; l++ {
		if err := binary.Read(src, binary.LittleEndian, plane); err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("truncated data at label %d: %v", l, err)}
		}
		dst := v.Plane(l)
		for i, x := range plane {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
				return nil, &FormatError{Reason: fmt.Sprintf("cost at label %d pixel %d is %v, want finite non-negative", l, i, f)}
			}
			dst[i] = f
		}
	}

	return &File{Costs: v, MinDepth: h.MinDepth, MaxDepth: h.MaxDepth}, nil
}

// Load reads a cost volume file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cost volume: %w", err)
	}
	defer f.Close()

	vf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Cost volume loaded",
		"path", path,
		"labels", vf.Costs.L,
		"height", vf.Costs.H,
		"width", vf.Costs.W,
		"min_depth", vf.MinDepth,
		"max_depth", vf.MaxDepth,
	)
	return vf, nil
}

// Save writes a cost volume file, zstd-compressed when path ends in ".zst".
// Uses temp file + rename so readers never see a partial file.
func Save(path string, vf *File) error {
	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create cost volume file: %w", err)
	}

	if err := writeTo(out, vf, strings.HasSuffix(path, ".zst")); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cost volume file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cost volume file: %w", err)
	}
	return nil
}

func writeTo(w io.Writer, vf *File, compress bool) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	if !compress {
		if err := Encode(bw, vf); err != nil {
			return err
		}
		return bw.Flush()
	}

	enc, err := zstd.NewWriter(bw)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := Encode(enc, vf); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return bw.Flush()
}
