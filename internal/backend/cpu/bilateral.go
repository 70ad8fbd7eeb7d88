package cpu

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/parallel"
	"github.com/born-ml/bilateral/internal/tensor"
)

// BilateralForward filters input and returns the output together with the
// normalisation weights and the partial derivatives needed for training.
// Any channel count and one to three spatial axes are supported.
func (cpu *CPUBackend) BilateralForward(input *tensor.RawTensor, s bilateral.Sigmas) (*bilateral.ForwardResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	layout, err := bilateral.NewLayout(input.Shape(), s)
	if err != nil {
		return nil, err
	}

	x := input.Contiguous()
	res, err := bilateral.NewForwardResult(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		return nil, err
	}

	switch x.DType() {
	case tensor.Float32:
		forward[float32](x, res, layout, s, cpu.parallel)
	case tensor.Float64:
		forward[float64](x, res, layout, s, cpu.parallel)
	default:
		return nil, errors.WithMessagef(bilateral.ErrUnsupportedDType, "cpu forward: %s", x.DType())
	}
	return res, nil
}

// BilateralBackward returns the gradient of the loss with respect to the
// filter input, given the upstream gradient and the forward activations.
func (cpu *CPUBackend) BilateralBackward(args *bilateral.BackwardArgs, s bilateral.Sigmas) (*tensor.RawTensor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := bilateral.CheckBackward(args); err != nil {
		return nil, err
	}
	layout, err := bilateral.NewLayout(args.Input.Shape(), s)
	if err != nil {
		return nil, err
	}

	in := backwardInputs{
		grad:    args.GradOutput.Contiguous(),
		x:       args.Input.Contiguous(),
		out:     args.Output.Contiguous(),
		weights: args.OutputWeights.Contiguous(),
		dodx:    args.DODX.Contiguous(),
	}
	result, err := tensor.NewRaw(in.x.Shape(), in.x.DType(), cpu.device)
	if err != nil {
		return nil, err
	}

	switch in.x.DType() {
	case tensor.Float32:
		backward[float32](result, in, layout, s, cpu.parallel)
	case tensor.Float64:
		backward[float64](result, in, layout, s, cpu.parallel)
	default:
		return nil, errors.WithMessagef(bilateral.ErrUnsupportedDType, "cpu backward: %s", in.x.DType())
	}
	return result, nil
}

type backwardInputs struct {
	grad, x, out, weights, dodx *tensor.RawTensor
}

// view returns the typed backing slice of a contiguous tensor.
func view[T float](r *tensor.RawTensor) []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	case float64:
		return any(r.AsFloat64()).([]T)
	default:
		panic(fmt.Sprintf("cpu: unsupported element type %T", zero))
	}
}

func clamp(v, size int) int {
	return min(max(v, 0), size-1)
}

// offsetSquares returns (k-half)² per window position and axis.
func offsetSquares(l bilateral.Layout) [bilateral.MaxSpatialDims][]float64 {
	var out [bilateral.MaxSpatialDims][]float64
	for i := range out {
		out[i] = make([]float64, l.Window[i])
		for k := range out[i] {
			o := float64(k - l.Half[i])
			out[i][k] = o * o
		}
	}
	return out
}

type forwardScratch struct {
	diff, value, jx, j1, srx []float64
	six                      [bilateral.MaxSpatialDims][]float64
	weight, sr               float64
	si                       [bilateral.MaxSpatialDims]float64
}

func newForwardScratch(channels int) *forwardScratch {
	s := &forwardScratch{
		diff:  make([]float64, channels),
		value: make([]float64, channels),
		jx:    make([]float64, channels),
		j1:    make([]float64, channels),
		srx:   make([]float64, channels),
	}
	for i := range s.six {
		s.six[i] = make([]float64, channels)
	}
	return s
}

func (s *forwardScratch) reset() {
	clear(s.value)
	clear(s.jx)
	clear(s.j1)
	clear(s.srx)
	for i := range s.six {
		clear(s.six[i])
	}
	s.weight, s.sr = 0, 0
	s.si = [bilateral.MaxSpatialDims]float64{}
}

func forward[T float](input *tensor.RawTensor, res *bilateral.ForwardResult, l bilateral.Layout, s bilateral.Sigmas, cfg parallel.Config) {
	x := view[T](input)
	out, weights, dodx := view[T](res.Output), view[T](res.OutputWeights), view[T](res.DODX)
	dsr := view[T](res.DODSigmaColor)
	dsi := [bilateral.MaxSpatialDims][]T{view[T](res.DODSigmaX), view[T](res.DODSigmaY), view[T](res.DODSigmaZ)}

	gk := l.SpatialKernels(s)
	osq := offsetSquares(l)
	strides := l.SpatialStrides()
	sigmas := s.Spatial()
	invTwoSr2 := 1 / (2 * s.Color * s.Color)
	sr2, sr3 := s.Color*s.Color, s.Color*s.Color*s.Color
	channels, voxels := l.Channels, l.Voxels

	parallel.ForRange(l.Batch*voxels, func(start, end int) {
		acc := newForwardScratch(channels)
		for idx := start; idx < end; idx++ {
			b, home := idx/voxels, idx%voxels
			base := b * channels * voxels
			h := l.Coords(home)
			acc.reset()

			for k0 := 0; k0 < l.Window[0]; k0++ {
				n0 := clamp(h[0]+k0-l.Half[0], l.Sizes[0]) * strides[0]
				for k1 := 0; k1 < l.Window[1]; k1++ {
					n1 := clamp(h[1]+k1-l.Half[1], l.Sizes[1]) * strides[1]
					s01 := gk[0][k0] * gk[1][k1]
					for k2 := 0; k2 < l.Window[2]; k2++ {
						n := n0 + n1 + clamp(h[2]+k2-l.Half[2], l.Sizes[2])

						var dist float64
						for c := 0; c < channels; c++ {
							d := float64(x[base+c*voxels+n]) - float64(x[base+c*voxels+home])
							acc.diff[c] = d
							dist += d * d
						}
						w := s01 * gk[2][k2] * math.Exp(-dist*invTwoSr2)
						wo := [bilateral.MaxSpatialDims]float64{w * osq[0][k0], w * osq[1][k1], w * osq[2][k2]}

						acc.weight += w
						acc.sr += w * dist
						for i := range wo {
							acc.si[i] += wo[i]
						}
						for c := 0; c < channels; c++ {
							xn := float64(x[base+c*voxels+n])
							acc.value[c] += w * xn
							acc.jx[c] += w * acc.diff[c] * xn
							acc.j1[c] += w * acc.diff[c]
							acc.srx[c] += w * dist * xn
							for i := range wo {
								acc.six[i][c] += wo[i] * xn
							}
						}
					}
				}
			}

			for c := 0; c < channels; c++ {
				at := base + c*voxels + home
				o := acc.value[c] / acc.weight
				out[at] = T(o)
				weights[at] = T(acc.weight)
				dodx[at] = T((acc.jx[c] - o*acc.j1[c]) / (sr2 * acc.weight))
				dsr[at] = T((acc.srx[c] - o*acc.sr) / (sr3 * acc.weight))
				for i := range dsi {
					si3 := sigmas[i] * sigmas[i] * sigmas[i]
					dsi[i][at] = T((acc.six[i][c] - o*acc.si[i]) / (si3 * acc.weight))
				}
			}
		}
	}, cfg)
}

// prefixSums returns cumulative sums of each spatial kernel so that the sum
// over any offset interval is a single subtraction.
func prefixSums(gk [bilateral.MaxSpatialDims][]float64) [bilateral.MaxSpatialDims][]float64 {
	var out [bilateral.MaxSpatialDims][]float64
	for i := range gk {
		out[i] = make([]float64, len(gk[i])+1)
		for k, g := range gk[i] {
			out[i][k+1] = out[i][k] + g
		}
	}
	return out
}

// reachWeight sums the spatial weights of every offset o along one axis for
// which home h lands on k after border clamping.
func reachWeight(prefix []float64, half, size, k, h int) float64 {
	lo, hi := -half, half
	if k > 0 {
		lo = max(lo, k-h)
	}
	if k < size-1 {
		hi = min(hi, k-h)
	}
	if lo > hi {
		return 0
	}
	return prefix[hi+half+1] - prefix[lo+half]
}

// backward gathers, for each voxel k, every contribution of x[k] to the
// outputs of the homes whose window reaches k. Each voxel writes only its
// own gradient, so voxels run in parallel without synchronisation.
func backward[T float](result *tensor.RawTensor, in backwardInputs, l bilateral.Layout, s bilateral.Sigmas, cfg parallel.Config) {
	g, x := view[T](in.grad), view[T](in.x)
	out, weights, dodx := view[T](in.out), view[T](in.weights), view[T](in.dodx)
	dx := view[T](result)

	gk := l.SpatialKernels(s)
	prefix := prefixSums(gk)
	strides := l.SpatialStrides()
	invTwoSr2 := 1 / (2 * s.Color * s.Color)
	invSr2 := 1 / (s.Color * s.Color)
	channels, voxels := l.Channels, l.Voxels

	parallel.ForRange(l.Batch*voxels, func(start, end int) {
		grad := make([]float64, channels)
		diff := make([]float64, channels)

		for idx := start; idx < end; idx++ {
			b, kv := idx/voxels, idx%voxels
			base := b * channels * voxels
			k := l.Coords(kv)

			for c := 0; c < channels; c++ {
				at := base + c*voxels + kv
				grad[c] = float64(g[at]) * float64(dodx[at])
			}

			// dO[k,c']/dx[k,c] for c' != c: the diagonal is already in dodx.
			if channels > 1 {
				wk := float64(weights[base+kv])
				for k0 := 0; k0 < l.Window[0]; k0++ {
					n0 := clamp(k[0]+k0-l.Half[0], l.Sizes[0]) * strides[0]
					for k1 := 0; k1 < l.Window[1]; k1++ {
						n1 := clamp(k[1]+k1-l.Half[1], l.Sizes[1]) * strides[1]
						for k2 := 0; k2 < l.Window[2]; k2++ {
							n := n0 + n1 + clamp(k[2]+k2-l.Half[2], l.Sizes[2])
							if n == kv {
								continue
							}
							var dist, full float64
							for c := 0; c < channels; c++ {
								d := float64(x[base+c*voxels+n]) - float64(x[base+c*voxels+kv])
								diff[c] = d
								dist += d * d
							}
							w := gk[0][k0] * gk[1][k1] * gk[2][k2] * math.Exp(-dist*invTwoSr2)
							for c := 0; c < channels; c++ {
								at := base + c*voxels + kv
								full += float64(g[at]) * (float64(x[base+c*voxels+n]) - float64(out[at])) / wk
							}
							for c := 0; c < channels; c++ {
								at := base + c*voxels + kv
								own := float64(g[at]) * (float64(x[base+c*voxels+n]) - float64(out[at])) / wk
								grad[c] += w * invSr2 * diff[c] * (full - own)
							}
						}
					}
				}
			}

			// x[k] as the neighbour of home h.
			for h0 := max(0, k[0]-l.Half[0]); h0 <= min(l.Sizes[0]-1, k[0]+l.Half[0]); h0++ {
				r0 := reachWeight(prefix[0], l.Half[0], l.Sizes[0], k[0], h0)
				if r0 == 0 {
					continue
				}
				for h1 := max(0, k[1]-l.Half[1]); h1 <= min(l.Sizes[1]-1, k[1]+l.Half[1]); h1++ {
					r1 := reachWeight(prefix[1], l.Half[1], l.Sizes[1], k[1], h1)
					if r1 == 0 {
						continue
					}
					for h2 := max(0, k[2]-l.Half[2]); h2 <= min(l.Sizes[2]-1, k[2]+l.Half[2]); h2++ {
						r2 := reachWeight(prefix[2], l.Half[2], l.Sizes[2], k[2], h2)
						if r2 == 0 {
							continue
						}
						h := h0*strides[0] + h1*strides[1] + h2

						var dist, a float64
						wh := float64(weights[base+h])
						for c := 0; c < channels; c++ {
							xk := float64(x[base+c*voxels+kv])
							d := xk - float64(x[base+c*voxels+h])
							diff[c] = d
							dist += d * d
							at := base + c*voxels + h
							a += float64(g[at]) * (xk - float64(out[at])) / wh
						}
						w := r0 * r1 * r2 * math.Exp(-dist*invTwoSr2)
						for c := 0; c < channels; c++ {
							grad[c] += w * (float64(g[base+c*voxels+h])/wh - diff[c]*a*invSr2)
						}
					}
				}
			}

			for c := 0; c < channels; c++ {
				dx[base+c*voxels+kv] = T(grad[c])
			}
		}
	}, cfg)
}
