package cpu

import "github.com/born-ml/bilateral/internal/parallel"

type float interface {
	~float32 | ~float64
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
)

func binarySlice[T float](dst, a, b []T, op binaryOp, cfg parallel.Config) {
	parallel.ForRange(len(dst), func(start, end int) {
		switch op {
		case opAdd:
			for i := start; i < end; i++ {
				dst[i] = a[i] + b[i]
			}
		case opSub:
			for i := start; i < end; i++ {
				dst[i] = a[i] - b[i]
			}
		case opMul:
			for i := start; i < end; i++ {
				dst[i] = a[i] * b[i]
			}
		}
	}, cfg)
}

func scaleSlice[T float](dst, x []T, s T, cfg parallel.Config) {
	parallel.ForRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = x[i] * s
		}
	}, cfg)
}

func sumSlice[T float](x []T) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	return sum
}
