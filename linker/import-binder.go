package linker

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// Binds every module's imports to the matching export, and checks that
// every relocation names a bound symbol of a compatible storage class.
type ImportBinder struct {
	*parseutil.Emitter
}

func BindImports(emitter *parseutil.Emitter) *ImportBinder {
	return &ImportBinder{
		Emitter: emitter,
	}
}

func (binder *ImportBinder) Process(state *linkState) {
	for idx, module := range state.modules {
		binder.bindModule(state, ModuleId(idx), module)
	}
}

func (binder *ImportBinder) bindModule(
	state *linkState,
	id ModuleId,
	module *object.Module,
) {
	unbound := map[string]struct{}{}

	for _, sym := range module.Symbols() {
		if sym.IsDefined() {
			continue
		}

		export, ok := state.exports[sym.Name]
		if !ok {
			unbound[sym.Name] = struct{}{}
			binder.EmitErrors(&UnresolvedSymbolError{
				Module: module.Name(),
				Name:   sym.Name,
			})
			continue
		}

		if export.Class != sym.Class {
			unbound[sym.Name] = struct{}{}
			binder.EmitErrors(&SymbolClassMismatchError{
				Module:   module.Name(),
				Name:     sym.Name,
				Expected: sym.Class,
				Found:    export.Class,
				Exporter: state.modules[export.Module].Name(),
			})
			continue
		}

		state.bindings[id][sym.Name] = export
	}

	for _, reloc := range module.Relocations() {
		_, ok := unbound[reloc.Symbol]
		if ok { // already reported
			continue
		}

		target := state.target(id, reloc.Symbol)
		if target == nil {
			unbound[reloc.Symbol] = struct{}{}
			binder.EmitErrors(&UnresolvedSymbolError{
				Module: module.Name(),
				Name:   reloc.Symbol,
			})
			continue
		}

		if !isCompatible(reloc.Kind, target.Class) {
			binder.EmitErrors(&RelocationClassError{
				Module: module.Name(),
				Name:   reloc.Symbol,
				Kind:   reloc.Kind,
				Class:  target.Class,
			})
		}
	}
}

func isCompatible(
	kind platform.RelocationKind,
	class object.StorageClass,
) bool {
	switch kind {
	case platform.Abs64Relocation, platform.Rel32Relocation:
		return class == object.Normal || class == object.Function
	case platform.TLSOffsetRelocation, platform.TLSModuleRelocation:
		return class == object.ThreadLocal
	default:
		return false
	}
}
