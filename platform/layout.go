package platform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrRelocationOverflow = errors.New("relocation value out of range")

type RelocationKind string

const (
	// x64-style 32-bit relative offset where the offset is relative to the
	// location of the offset bytes themselves.  i.e.,
	//
	// Rel32Relocation = int32(LabelledEntryAddress - SiteAddress)
	//
	// NOTE: This is equivalent to SystemV ABI's R_X86_64_PC32 with A = 0.
	Rel32Relocation = RelocationKind("rel32")

	// Labelled entry's absolute 64-bit address.
	//
	// NOTE: This is equivalent to SystemV ABI's R_X86_64_64 with A = 0.  The
	// loader adds the process base to every abs64 site (R_X86_64_RELATIVE).
	Abs64Relocation = RelocationKind("abs64")

	// Labelled thread-local entry's unsigned 32-bit offset within its defining
	// module's TLS template.
	//
	// NOTE: This is equivalent to SystemV ABI's R_X86_64_DTPOFF32.
	TLSOffsetRelocation = RelocationKind("tlsoff")

	// Unsigned 32-bit identity of the module defining the labelled
	// thread-local entry.
	//
	// NOTE: This is equivalent to SystemV ABI's R_X86_64_DTPMOD64 (narrowed).
	TLSModuleRelocation = RelocationKind("tlsmod")
)

func (kind RelocationKind) IsValid() bool {
	switch kind {
	case Rel32Relocation,
		Abs64Relocation,
		TLSOffsetRelocation,
		TLSModuleRelocation:
		return true
	default:
		return false
	}
}

// Number of bytes patched at the relocation site.
func (kind RelocationKind) Width() int {
	switch kind {
	case Abs64Relocation:
		return 8
	case Rel32Relocation, TLSOffsetRelocation, TLSModuleRelocation:
		return 4
	default:
		panic("unknown relocation kind: " + string(kind))
	}
}

// Write value (little endian) into the first Width() bytes of site.
func (kind RelocationKind) Patch(site []byte, value int64) error {
	if len(site) < kind.Width() {
		return fmt.Errorf(
			"%s site has %d bytes, need %d",
			kind,
			len(site),
			kind.Width())
	}

	switch kind {
	case Abs64Relocation:
		binary.LittleEndian.PutUint64(site, uint64(value))
	case Rel32Relocation:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return fmt.Errorf("%w: %s %d", ErrRelocationOverflow, kind, value)
		}
		binary.LittleEndian.PutUint32(site, uint32(int32(value)))
	case TLSOffsetRelocation, TLSModuleRelocation:
		if value < 0 || value > math.MaxUint32 {
			return fmt.Errorf("%w: %s %d", ErrRelocationOverflow, kind, value)
		}
		binary.LittleEndian.PutUint32(site, uint32(value))
	default:
		panic("unknown relocation kind: " + string(kind))
	}

	return nil
}

type Relocation struct {
	Kind RelocationKind

	Offset int // relative to the beginning of the segment

	Symbol string
}

// A continuous segment of instruction bytes.
type Segment struct {
	Bytes       []byte
	Relocations []Relocation
}
