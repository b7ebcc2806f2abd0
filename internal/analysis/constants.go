// Package analysis locates vtables in x86 and x86-64 binaries.
// It pairs a scan of read-only data for runs of code pointers with
// instruction idioms that load those runs' start addresses.
package analysis

import "math"

// Constants for analysis operations
const (
	// PointerSize32 is the pointer width of 32-bit targets
	PointerSize32 = 4

	// PointerSize64 is the pointer width of 64-bit targets
	PointerSize64 = 8

	// MinImm32 and MaxImm32 bound the immediates accepted by absolute stores
	MinImm32 = math.MinInt32
	MaxImm32 = math.MaxInt32
)
