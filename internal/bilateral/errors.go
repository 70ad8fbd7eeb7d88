package bilateral

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors returned by the dispatcher and the filter kernels.
// Kernel and dispatcher errors wrap them, match with errors.Is.
var (
	ErrChannelLimit      = errors.New("bilateral: channel count exceeds GPU limit")
	ErrSpatialLimit      = errors.New("bilateral: spatial dimension exceeds GPU limit")
	ErrNotContiguous     = errors.New("bilateral: tensor must be contiguous")
	ErrInvalidSigma      = errors.New("bilateral: sigma must be finite and positive")
	ErrInvalidRank       = errors.New("bilateral: input must be [B, C, S1(, S2(, S3))]")
	ErrShapeMismatch     = errors.New("bilateral: tensor shapes do not match")
	ErrDTypeMismatch     = errors.New("bilateral: tensor dtypes do not match")
	ErrUnsupportedDType  = errors.New("bilateral: unsupported dtype")
	ErrGPUUnavailable    = errors.New("bilateral: GPU backend unavailable")
	ErrMissingActivation = errors.New("bilateral: missing forward tensors for backward pass")
)

// LimitKind names the GPU limit a tensor exceeded.
type LimitKind int

// Limit kinds.
const (
	ChannelLimit LimitKind = iota
	SpatialLimit
)

// LimitError reports a tensor that exceeds a compiled-in GPU limit.
// It matches ErrChannelLimit or ErrSpatialLimit with errors.Is.
type LimitError struct {
	Kind  LimitKind
	Limit int // compiled-in maximum
	Got   int // value found on the tensor
}

func (e *LimitError) Error() string {
	switch e.Kind {
	case ChannelLimit:
		return fmt.Sprintf("Bilateral filtering not implemented for channel count > %d", e.Limit)
	case SpatialLimit:
		return fmt.Sprintf("Bilateral filtering not implemented for spatial dimension > %d", e.Limit)
	default:
		return fmt.Sprintf("bilateral: limit %d exceeded (got %d)", e.Limit, e.Got)
	}
}

// Is makes LimitError match the sentinel of its kind.
func (e *LimitError) Is(target error) bool {
	switch e.Kind {
	case ChannelLimit:
		return target == ErrChannelLimit
	case SpatialLimit:
		return target == ErrSpatialLimit
	default:
		return false
	}
}

// Reason is a short label for metrics and logs.
func (e *LimitError) Reason() string {
	if e.Kind == ChannelLimit {
		return "channels"
	}
	return "spatial_dims"
}
