package linker

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
	"github.com/hemashushu/xiaoxuan-assembly/object"
)

// Image virtual address layout from low address to high address:
//
// |                  | <- 0 (never mapped)
// |------------------| <- CodeAddress (page aligned)
// |module 0 code     |
// |padding           | (platform padding instructions)
// |module 1 code     |
// |...               |
// |------------------|
// |padding           |
// |------------------| <- DataAddress (aligned to DataAlignment)
// |module 0 normal   |
// |padding           |
// |module 1 normal   |
// |...               |
// |------------------| <- Span()
//
// ThreadLocal symbols are not part of the image address space.  Each module's
// thread-local symbols are laid out in the module's TLS template, and their
// "address" is the offset within the template.
type StorageClassResolver struct {
	*parseutil.Emitter
}

func ResolveStorage(emitter *parseutil.Emitter) *StorageClassResolver {
	return &StorageClassResolver{
		Emitter: emitter,
	}
}

func (resolver *StorageClassResolver) Process(state *linkState) {
	resolver.layoutCode(state)
	resolver.layoutNormalData(state)
	resolver.collectTLSTemplates(state)

	image := state.image
	for idx, module := range state.modules {
		for _, sym := range module.Symbols() {
			if !sym.IsDefined() {
				continue
			}

			def := state.definitions[idx][sym.Name]
			switch sym.Class {
			case object.Function:
				def.Address = image.CodeAddress +
					uint64(state.codeBase[idx]+sym.Offset)
			case object.Normal:
				def.Address = image.DataAddress +
					uint64(state.dataBase[idx]+sym.Offset)
			case object.ThreadLocal:
				def.Address = uint64(sym.Offset)
			default:
				panic("unhandled storage class: " + string(sym.Class))
			}
		}
	}
}

func (resolver *StorageClassResolver) layoutCode(state *linkState) {
	alignment := state.config.CodeAlignment
	if alignment == 0 {
		alignment = state.targetPlatform.CodeAlignment()
	}

	code := []byte{}
	for idx, module := range state.modules {
		offset := architecture.AlignUp(len(code), alignment)
		code = append(code, state.targetPlatform.Padding(offset-len(code))...)

		state.codeBase[idx] = offset
		code = append(code, module.Code()...)
	}

	state.image.Code = code
}

func (resolver *StorageClassResolver) layoutNormalData(state *linkState) {
	image := state.image
	image.DataAlignment = state.config.DataAlignment
	image.DataAddress = architecture.AlignUpAddress(
		image.CodeAddress+uint64(len(image.Code)),
		uint64(state.config.DataAlignment))

	data := []byte{}
	for idx, module := range state.modules {
		layout := module.Layout().Normal
		if len(layout.Entries) == 0 {
			state.dataBase[idx] = len(data)
			continue
		}

		if layout.Alignment > state.config.DataAlignment {
			resolver.EmitErrors(&object.AlignmentOverflowError{
				Module:    module.Name(),
				Name:      mostAligned(layout).Name,
				Alignment: layout.Alignment,
				Limit:     state.config.DataAlignment,
			})
			return
		}

		offset := architecture.AlignUp(len(data), layout.Alignment)
		end := offset + layout.Size
		if end > state.config.MaxSegmentSize {
			last := layout.Entries[len(layout.Entries)-1]
			resolver.EmitErrors(&object.AlignmentOverflowError{
				Module:    module.Name(),
				Name:      last.Name,
				Alignment: layout.Alignment,
				Limit:     state.config.MaxSegmentSize,
			})
			return
		}

		data = append(data, make([]byte, offset-len(data))...)
		state.dataBase[idx] = offset
		data = append(data, module.NormalSegment()...)
	}

	image.Data = data
}

func (resolver *StorageClassResolver) collectTLSTemplates(state *linkState) {
	for idx, module := range state.modules {
		if !module.HasThreadLocals() {
			continue
		}

		layout := module.Layout().ThreadLocal
		if layout.Alignment > state.config.MaxAlignment {
			resolver.EmitErrors(&object.AlignmentOverflowError{
				Module:    module.Name(),
				Name:      mostAligned(layout).Name,
				Alignment: layout.Alignment,
				Limit:     state.config.MaxAlignment,
			})
			continue
		}

		id := ModuleId(idx)
		template := module.TLSTemplate()
		state.image.TLSDirectory[id] = &TLSTemplate{
			Module:     id,
			ModuleName: module.Name(),
			Bytes:      template,
			Size:       len(template),
			Alignment:  module.TLSAlignment(),
		}
	}
}

// Returns the first entry with the layout's (maximum) alignment.
func mostAligned(
	layout *architecture.SegmentLayout,
) *architecture.DataLocation {
	result := layout.Entries[0]
	for _, entry := range layout.Entries[1:] {
		if entry.Alignment > result.Alignment {
			result = entry
		}
	}
	return result
}
