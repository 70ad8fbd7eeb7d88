// Package serialization reads and writes named tensors in the SafeTensors
// format, used for filtered volumes and for trained sigma checkpoints.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name -> {dtype, shape, data_offsets}]
//	  [Tensor data: raw little-endian bytes, tensors in name order]
//
// Only F32 and F64 tensors are supported. Writers store a SHA-256 of the
// data section under the "sha256" metadata key and readers verify it when
// present, so files written by other tools still load.
//
// Example usage:
//
//	err := serialization.WriteFile("sigmas.safetensors", map[string]*tensor.RawTensor{
//	    "bilateral.sigma_x": sx.Raw(),
//	}, map[string]string{"epochs": "200"})
//
//	file, err := serialization.ReadFile("sigmas.safetensors", tensor.CPU)
//	sx := file.Tensors["bilateral.sigma_x"]
package serialization
