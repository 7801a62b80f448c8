package crf

import (
	"fmt"
	"math"
)

// maxLatticeDim bounds the feature dimension of the permutohedral lattice.
const maxLatticeDim = 8

type latticeKey [maxLatticeDim]int32

// Lattice is a permutohedral lattice over d-dimensional features.
// Filtering through it approximates convolution with exp(-|fi-fj|²/2)
// in time linear in the number of points.
//
// Construction embeds every point in the (d+1)-dimensional hyperplane,
// finds the enclosing simplex and stores the d+1 vertex indices and
// barycentric weights. Apply then splats values onto the vertices, blurs
// along each of the d+1 lattice directions with a [1 2 1]/2 stencil and
// slices the result back.
type Lattice struct {
	n, d    int
	m       int       // lattice vertices
	offsets []int32   // n*(d+1) vertex indices
	weights []float64 // n*(d+1) barycentric weights
	blurLo  []int32   // (d+1)*m neighbour indices, -1 when absent
	blurHi  []int32
}

// NewLattice builds the lattice for n points with d features each.
// features is point-major: features[i*d + k].
func NewLattice(features []float64, n, d int) (*Lattice, error) {
	if d < 1 || d > maxLatticeDim {
		return nil, fmt.Errorf("lattice dimension %d outside [1, %d]", d, maxLatticeDim)
	}
	if len(features) != n*d {
		return nil, fmt.Errorf("lattice features: expected %d values, got %d", n*d, len(features))
	}

	d1 := d + 1
	invStdDev := math.Sqrt(2.0/3.0) * float64(d1)
	scale := make([]float64, d)
	for i := range scale {
		scale[i] = invStdDev / math.Sqrt(float64((i+1)*(i+2)))
	}

	canonical := make([]int, d1*d1)
	for i := 0; i <= d; i++ {
		for j := 0; j <= d-i; j++ {
			canonical[i*d1+j] = i
		}
		for j := d - i + 1; j <= d; j++ {
			canonical[i*d1+j] = i - d1
		}
	}

	lt := &Lattice{
		n:       n,
		d:       d,
		offsets: make([]int32, n*d1),
		weights: make([]float64, n*d1),
	}

	table := make(map[latticeKey]int32, n)
	var keys []latticeKey

	elevated := make([]float64, d1)
	rem0 := make([]int, d1)
	rank := make([]int, d1)
	bary := make([]float64, d+2)
	downFactor := 1.0 / float64(d1)

	for k := 0; k < n; k++ {
		f := features[k*d : (k+1)*d]

		// Elevate onto the hyperplane x·1 = 0.
		sm := 0.0
		for j := d; j > 0; j-- {
			cf := f[j-1] * scale[j-1]
			elevated[j] = sm - float64(j)*cf
			sm += cf
		}
		elevated[0] = sm

		// Nearest remainder-0 point.
		sum := 0
		for i := 0; i <= d; i++ {
			v := downFactor * elevated[i]
			up := int(math.Ceil(v)) * d1
			down := int(math.Floor(v)) * d1
			if float64(up)-elevated[i] < elevated[i]-float64(down) {
				rem0[i] = up
			} else {
				rem0[i] = down
			}
			sum += rem0[i]
		}
		sum /= d1

		for i := range rank {
			rank[i] = 0
		}
		for i := 0; i < d; i++ {
			di := elevated[i] - float64(rem0[i])
			for j := i + 1; j <= d; j++ {
				if di < elevated[j]-float64(rem0[j]) {
					rank[i]++
				} else {
					rank[j]++
				}
			}
		}

		// Project back onto the plane when the rounded point left it.
		for i := 0; i <= d; i++ {
			rank[i] += sum
			if rank[i] < 0 {
				rank[i] += d1
				rem0[i] += d1
			} else if rank[i] > d {
				rank[i] -= d1
				rem0[i] -= d1
			}
		}

		for i := range bary {
			bary[i] = 0
		}
		for i := 0; i <= d; i++ {
			v := (elevated[i] - float64(rem0[i])) * downFactor
			bary[d-rank[i]] += v
			bary[d-rank[i]+1] -= v
		}
		bary[0] += 1.0 + bary[d+1]

		for r := 0; r <= d; r++ {
			var key latticeKey
			for i := 0; i < d; i++ {
				key[i] = int32(rem0[i] + canonical[r*d1+rank[i]])
			}
			idx, ok := table[key]
			if !ok {
				idx = int32(len(keys))
				table[key] = idx
				keys = append(keys, key)
			}
			lt.offsets[k*d1+r] = idx
			lt.weights[k*d1+r] = bary[r]
		}
	}

	lt.m = len(keys)
	lt.blurLo = make([]int32, d1*lt.m)
	lt.blurHi = make([]int32, d1*lt.m)

	lookup := func(key latticeKey) int32 {
		if idx, ok := table[key]; ok {
			return idx
		}
		return -1
	}

	for j := 0; j <= d; j++ {
		for i, key := range keys {
			var lo, hi latticeKey
			for k := 0; k < d; k++ {
				lo[k] = key[k] - 1
				hi[k] = key[k] + 1
			}
			if j < d {
				lo[j] = key[j] + int32(d)
				hi[j] = key[j] - int32(d)
			}
			lt.blurLo[j*lt.m+i] = lookup(lo)
			lt.blurHi[j*lt.m+i] = lookup(hi)
		}
	}

	return lt, nil
}

// Points returns the number of filtered points
func (lt *Lattice) Points() int {
	return lt.n
}

// Vertices returns the number of lattice vertices in use
func (lt *Lattice) Vertices() int {
	return lt.m
}

// Apply filters channels planes of src into dst. Both are channel-major:
// value (c, i) at index c*n + i. dst and src must not alias.
func (lt *Lattice) Apply(dst, src []float64, channels int) {
	n, d1 := lt.n, lt.d+1

	// Slot 0 stays zero and absorbs missing neighbours.
	values := make([]float64, (lt.m+1)*channels)
	scratch := make([]float64, (lt.m+1)*channels)

	for i := 0; i < n; i++ {
		for j := 0; j < d1; j++ {
			o := (int(lt.offsets[i*d1+j]) + 1) * channels
			w := lt.weights[i*d1+j]
			for c := 0; c < channels; c++ {
				values[o+c] += w * src[c*n+i]
			}
		}
	}

	for j := 0; j < d1; j++ {
		for i := 0; i < lt.m; i++ {
			lo := (int(lt.blurLo[j*lt.m+i]) + 1) * channels
			hi := (int(lt.blurHi[j*lt.m+i]) + 1) * channels
			base := (i + 1) * channels
			for c := 0; c < channels; c++ {
				scratch[base+c] = values[base+c] + 0.5*(values[lo+c]+values[hi+c])
			}
		}
		values, scratch = scratch, values
	}

	alpha := 1.0 / (1.0 + math.Pow(2, -float64(lt.d)))
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			acc := 0.0
			for j := 0; j < d1; j++ {
				o := (int(lt.offsets[i*d1+j]) + 1) * channels
				acc += lt.weights[i*d1+j] * values[o+c]
			}
			dst[c*n+i] = acc * alpha
		}
	}
}
