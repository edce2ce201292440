package architecture

import (
	"modernc.org/mathutil"
)

const (
	// Assumption: we only support 64 bit architecture.
	AddressByteSize = 8

	// The first page of every image is never mapped.  Hence, a zero address is
	// never a valid symbol address.
	PageSize = 0x1000
)

func IsValidAlignment(alignment int) bool {
	return alignment > 0 && mathutil.PopCountUint64(uint64(alignment)) == 1
}

// Alignment must be a power of two.
func AlignUp(offset int, alignment int) int {
	roundUp := (offset + alignment - 1) / alignment
	return roundUp * alignment
}

func AlignUpAddress(address uint64, alignment uint64) uint64 {
	return (address + alignment - 1) &^ (alignment - 1)
}
