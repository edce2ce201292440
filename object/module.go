package object

import (
	"github.com/hemashushu/xiaoxuan-assembly/architecture"
)

type Export struct {
	Symbol SymbolId

	Class       StorageClass
	Size        int
	Alignment   int
	Initializer []byte
}

// Exported name -> export
type ExportsTable map[string]Export

// Imported name -> expected storage class
type ImportsTable map[string]StorageClass

// Module-local storage layout computed by Builder.Finalize
type LayoutPlan struct {
	Normal      *architecture.SegmentLayout
	ThreadLocal *architecture.SegmentLayout
}

// Module is immutable once built.  All accessors return copies.
type Module struct {
	name string

	symbols []Symbol
	byName  map[string]SymbolId

	code        []byte
	relocations []Relocation

	layout LayoutPlan

	normalSegment []byte
	tlsTemplate   []byte
}

func (module *Module) Name() string {
	return module.name
}

func (module *Module) Symbols() []Symbol {
	result := make([]Symbol, 0, len(module.symbols))
	for _, sym := range module.symbols {
		result = append(result, sym.copy())
	}
	return result
}

func (module *Module) Symbol(name string) (Symbol, bool) {
	id, ok := module.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return module.symbols[id].copy(), true
}

func (module *Module) Exports() ExportsTable {
	exports := ExportsTable{}
	for _, sym := range module.symbols {
		if sym.Visibility != Exported {
			continue
		}

		exports[sym.Name] = Export{
			Symbol:      sym.Id,
			Class:       sym.Class,
			Size:        sym.Size,
			Alignment:   sym.Alignment,
			Initializer: sym.copy().Initializer,
		}
	}
	return exports
}

func (module *Module) Imports() ImportsTable {
	imports := ImportsTable{}
	for _, sym := range module.symbols {
		if sym.Visibility == Imported {
			imports[sym.Name] = sym.Class
		}
	}
	return imports
}

func (module *Module) Code() []byte {
	return cloneBytes(module.code)
}

func (module *Module) CodeSize() int {
	return len(module.code)
}

func (module *Module) Relocations() []Relocation {
	result := make([]Relocation, len(module.relocations))
	copy(result, module.relocations)
	return result
}

func (module *Module) NormalSegment() []byte {
	return cloneBytes(module.normalSegment)
}

func (module *Module) NormalAlignment() int {
	return module.layout.Normal.Alignment
}

func (module *Module) TLSTemplate() []byte {
	return cloneBytes(module.tlsTemplate)
}

func (module *Module) TLSAlignment() int {
	return module.layout.ThreadLocal.Alignment
}

func (module *Module) HasThreadLocals() bool {
	return len(module.layout.ThreadLocal.Entries) > 0
}

func (module *Module) Layout() LayoutPlan {
	return LayoutPlan{
		Normal:      copyLayout(module.layout.Normal),
		ThreadLocal: copyLayout(module.layout.ThreadLocal),
	}
}

func copyLayout(
	layout *architecture.SegmentLayout,
) *architecture.SegmentLayout {
	result := &architecture.SegmentLayout{
		Kind:      layout.Kind,
		Locations: make(map[string]*architecture.DataLocation, len(layout.Entries)),
		Entries:   make([]*architecture.DataLocation, 0, len(layout.Entries)),
		MaxSize:   layout.MaxSize,
		Size:      layout.Size,
		Alignment: layout.Alignment,
	}
	for _, loc := range layout.Entries {
		entry := loc.Copy()
		result.Locations[entry.Name] = entry
		result.Entries = append(result.Entries, entry)
	}
	return result
}

func cloneBytes(bytes []byte) []byte {
	result := make([]byte, len(bytes))
	copy(result, bytes)
	return result
}
