package bucket

import "golang.org/x/sys/cpu"

// SIMDCapability reports what instruction set the masked-subtract loop in
// Apply could in principle be vectorized onto on this machine. It is a
// diagnostic string surfaced on the status endpoint; Apply itself always
// runs the portable unrolled-loop path regardless of what this reports.
func SIMDCapability() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "AVX-512 (amd64, unused: scalar path only)"
	case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
		return "AVX2 + FMA (amd64, unused: scalar path only)"
	case cpu.X86.HasSSE41:
		return "SSE4.1 (amd64, unused: scalar path only)"
	case cpu.ARM64.HasASIMD:
		return "NEON/ASIMD (arm64, unused: scalar path only)"
	default:
		return "scalar"
	}
}
