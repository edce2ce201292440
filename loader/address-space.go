package loader

import (
	"sync/atomic"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
)

const (
	// Loaded processes and thread storage blocks are placed well above the
	// image virtual address range so that an unrebased address is never a
	// valid loaded address.
	addressSpaceStart = uint64(1) << 32
)

// A monotonic reservation of virtual address ranges.  Reserved ranges are
// never reused, hence two reservations never alias, even after the memory
// backing an earlier reservation is garbage collected.
type addressSpace struct {
	next atomic.Uint64
}

func newAddressSpace(start uint64) *addressSpace {
	space := &addressSpace{}
	space.next.Store(start)
	return space
}

var globalAddressSpace = newAddressSpace(addressSpaceStart)

// Reserves size bytes (rounded up to whole pages) starting at an address that
// is a multiple of alignment.  An unmapped guard page follows every range.
func (space *addressSpace) reserve(size uint64, alignment uint64) uint64 {
	if alignment < architecture.PageSize {
		alignment = architecture.PageSize
	}

	for {
		next := space.next.Load()
		start := architecture.AlignUpAddress(next, alignment)
		end := architecture.AlignUpAddress(start+size, architecture.PageSize)
		if space.next.CompareAndSwap(next, end+architecture.PageSize) {
			return start
		}
	}
}
