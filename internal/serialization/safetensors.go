package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/bilateral/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is a decoded SafeTensors file.
type File struct {
	Metadata map[string]string
	Tensors  map[string]*tensor.RawTensor
}

// Tensor returns the named tensor or ErrTensorNotFound.
func (f *File) Tensor(name string) (*tensor.RawTensor, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}
	return t, nil
}

// Write encodes tensors in name order. The data checksum is added to a copy
// of metadata under ChecksumKey.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	blobs := make([][]byte, len(names))
	readers := make([]io.Reader, len(names))
	var offset int64
	for i, name := range names {
		raw := tensors[name].Contiguous()
		dtype, err := dtypeToSafeTensors(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		shape := make([]int64, len(raw.Shape()))
		for j, dim := range raw.Shape() {
			shape[j] = int64(dim)
		}
		blobs[i] = raw.Data()
		readers[i] = bytes.NewReader(blobs[i])
		size := int64(len(blobs[i]))
		header[name] = SafeTensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	sum, err := ComputeChecksumReader(io.MultiReader(readers...))
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, blob := range blobs {
		if _, err := bw.Write(blob); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", names[i], err)
		}
	}
	return bw.Flush()
}

// WriteFile writes tensors to path.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: output path is user supplied
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, tensors, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a SafeTensors stream into tensors on device.
func Read(r io.Reader, device tensor.Device) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	file := &File{Metadata: map[string]string{}, Tensors: make(map[string]*tensor.RawTensor, len(entries))}
	metas := make([]TensorMeta, 0, len(entries))
	for name, entry := range entries {
		if name == metadataKey {
			if err := json.Unmarshal(entry, &file.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(entry, &h); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		meta, err := h.meta(name)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, err
	}
	if stored, ok := file.Metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, stored); err != nil {
			return nil, err
		}
	}

	for _, m := range metas {
		raw, err := tensor.NewRaw(m.Shape, m.DType, device)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", m.Name, err)
		}
		copy(raw.Data(), data[m.Offset:m.Offset+m.Size])
		file.Tensors[m.Name] = raw
	}
	return file, nil
}

// ReadFile reads a SafeTensors file from path.
func ReadFile(path string, device tensor.Device) (*File, error) {
	//nolint:gosec // G304: input path is user supplied
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f), device)
}

func (h SafeTensorHeader) meta(name string) (TensorMeta, error) {
	dtype, err := dtypeFromSafeTensors(h.DType)
	if err != nil {
		return TensorMeta{}, fmt.Errorf("tensor %q: %w", name, err)
	}
	shape := make(tensor.Shape, len(h.Shape))
	for i, dim := range h.Shape {
		if dim <= 0 || dim > math.MaxInt32 {
			return TensorMeta{}, &ValidationError{
				Type:    "invalid_shape",
				Tensor:  name,
				Details: fmt.Sprintf("dimension %d is %d", i, dim),
			}
		}
		shape[i] = int(dim)
	}
	if _, ok := byteSize(shape, dtype, math.MaxInt64); !ok {
		return TensorMeta{}, &ValidationError{
			Type:    "invalid_shape",
			Tensor:  name,
			Details: fmt.Sprintf("shape %v overflows", h.Shape),
		}
	}
	return TensorMeta{
		Name:   name,
		DType:  dtype,
		Shape:  shape,
		Offset: h.DataOffsets[0],
		Size:   h.DataOffsets[1] - h.DataOffsets[0],
	}, nil
}

func dtypeToSafeTensors(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}

func dtypeFromSafeTensors(s string) (tensor.DataType, error) {
	switch s {
	case "F32":
		return tensor.Float32, nil
	case "F64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, s)
	}
}
