package linker

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/object"
)

// Collects every module's defined symbols, and the union of all modules'
// exports.
type ExportCollector struct {
	*parseutil.Emitter
}

func CollectExports(emitter *parseutil.Emitter) *ExportCollector {
	return &ExportCollector{
		Emitter: emitter,
	}
}

func (collector *ExportCollector) Process(state *linkState) {
	moduleNames := map[string]struct{}{}

	exporters := map[string][]string{}
	duplicates := []string{}

	for idx, module := range state.modules {
		id := ModuleId(idx)

		_, ok := moduleNames[module.Name()]
		if ok {
			collector.EmitErrors(&DuplicateModuleError{Name: module.Name()})
		}
		moduleNames[module.Name()] = struct{}{}

		definitions := map[string]*SymbolAddress{}
		state.definitions[idx] = definitions
		state.bindings[idx] = map[string]*SymbolAddress{}

		for _, sym := range module.Symbols() {
			if !sym.IsDefined() {
				continue
			}

			def := &SymbolAddress{
				Module: id,
				Name:   sym.Name,
				Class:  sym.Class,
				Size:   sym.Size,
			}
			definitions[sym.Name] = def

			if sym.Visibility != object.Exported {
				continue
			}

			prev, ok := exporters[sym.Name]
			if ok && len(prev) == 1 {
				duplicates = append(duplicates, sym.Name)
			}
			exporters[sym.Name] = append(prev, module.Name())

			if !ok {
				state.exports[sym.Name] = def
			}
		}
	}

	for _, name := range duplicates {
		collector.EmitErrors(&DuplicateExportError{
			Name:    name,
			Modules: exporters[name],
		})
	}
}
