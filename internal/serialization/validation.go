package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/bilateral/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 1024
)

// TensorMeta describes one tensor of the data section.
type TensorMeta struct {
	Name   string
	DType  tensor.DataType
	Shape  tensor.Shape
	Offset int64
	Size   int64
}

// byteSize returns the byte size of shape and dtype. It reports false when a
// dimension is not positive or the size would exceed limit; the product is
// never allowed to overflow.
func byteSize(shape tensor.Shape, dtype tensor.DataType, limit int64) (int64, bool) {
	n := int64(dtype.Size())
	for _, dim := range shape {
		if dim <= 0 || n > limit/int64(dim) {
			return 0, false
		}
		n *= int64(dim)
	}
	return n, n <= limit
}

// ValidateTensorOffsets checks for overlapping tensor regions, regions
// outside the data section and sizes that disagree with shape and dtype.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		want, ok := byteSize(t.Shape, t.DType, dataSize)
		if !ok {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("%s%v needs more than the %d data bytes", t.DType, t.Shape, dataSize),
			}
		}
		if t.Size != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("%d bytes for %s%v, want %d", t.Size, t.DType, t.Shape, want),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty names, over-long names and names with
// path separators, ".." or null bytes.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator"}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	if name == metadataKey {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "reserved for metadata"}
	}
	return nil
}
