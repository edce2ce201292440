package object

import (
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

type RelocationState int

const (
	Recorded = RelocationState(iota)
	Resolved
)

func (state RelocationState) String() string {
	switch state {
	case Recorded:
		return "recorded"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// A code site (Offset relative to the beginning of the module's code) that
// must be patched once Symbol's final address / offset is known.
type Relocation struct {
	platform.Relocation

	State RelocationState
}

func (reloc *Relocation) MarkResolved() {
	if reloc.State == Resolved {
		panic("relocation resolved twice: " + reloc.Symbol)
	}
	reloc.State = Resolved
}
