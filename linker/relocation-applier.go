package linker

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// Patches every recorded relocation site in the image's code.  Each
// relocation transitions from recorded to resolved exactly once.
type RelocationApplier struct {
	*parseutil.Emitter
}

func ApplyRelocations(emitter *parseutil.Emitter) *RelocationApplier {
	return &RelocationApplier{
		Emitter: emitter,
	}
}

func (applier *RelocationApplier) Process(state *linkState) {
	image := state.image
	for idx, module := range state.modules {
		id := ModuleId(idx)

		for _, reloc := range module.Relocations() {
			target := state.target(id, reloc.Symbol)
			if target == nil {
				panic("unbound relocation target: " + reloc.Symbol)
			}

			siteOffset := state.codeBase[idx] + reloc.Offset
			site := image.CodeAddress + uint64(siteOffset)

			var value int64
			switch reloc.Kind {
			case platform.Abs64Relocation:
				value = int64(target.Address)
			case platform.Rel32Relocation:
				value = int64(target.Address) - int64(site)
			case platform.TLSOffsetRelocation:
				value = int64(target.Address)
			case platform.TLSModuleRelocation:
				value = int64(target.Module)
			default:
				panic("unhandled relocation kind: " + string(reloc.Kind))
			}

			err := reloc.Kind.Patch(image.Code[siteOffset:], value)
			if err != nil {
				applier.EmitErrors(&object.InvalidRelocationError{
					Module: module.Name(),
					Symbol: reloc.Symbol,
					Offset: reloc.Offset,
					Reason: err.Error(),
				})
				continue
			}

			if reloc.Kind == platform.Abs64Relocation {
				image.AbsoluteSites = append(image.AbsoluteSites, siteOffset)
			}

			reloc.MarkResolved()
			image.Relocations = append(
				image.Relocations,
				ResolvedRelocation{
					Module:     id,
					Relocation: reloc,
					Site:       site,
					Value:      value,
				})
		}
	}
}
