package cpu

import (
	"runtime"
	"strings"

	cpuid "golang.org/x/sys/cpu"
)

// Features describes the host CPU as reported by golang.org/x/sys/cpu.
type Features struct {
	Arch    string
	Cores   int
	AVX2    bool
	AVX512F bool
	FMA     bool
	SSE41   bool
	ASIMD   bool // ARM64 Advanced SIMD (NEON)
}

// DetectFeatures reads the SIMD capabilities of the host.
func DetectFeatures() Features {
	return Features{
		Arch:    runtime.GOARCH,
		Cores:   runtime.NumCPU(),
		AVX2:    cpuid.X86.HasAVX2,
		AVX512F: cpuid.X86.HasAVX512F,
		FMA:     cpuid.X86.HasFMA,
		SSE41:   cpuid.X86.HasSSE41,
		ASIMD:   cpuid.ARM64.HasASIMD,
	}
}

// SIMD returns the detected instruction set extensions, widest first.
func (f Features) SIMD() []string {
	var out []string
	for _, ext := range []struct {
		name string
		ok   bool
	}{
		{"avx512f", f.AVX512F},
		{"avx2", f.AVX2},
		{"fma", f.FMA},
		{"sse4.1", f.SSE41},
		{"asimd", f.ASIMD},
	} {
		if ext.ok {
			out = append(out, ext.name)
		}
	}
	return out
}

func (f Features) String() string {
	simd := f.SIMD()
	if len(simd) == 0 {
		simd = []string{"none"}
	}
	return f.Arch + " (" + strings.Join(simd, ",") + ")"
}

// Features returns the host CPU features.
func (cpu *CPUBackend) Features() Features {
	return DetectFeatures()
}
