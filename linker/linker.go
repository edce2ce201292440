package linker

import (
	"errors"

	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
	"github.com/hemashushu/xiaoxuan-assembly/linker/util"
	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

type linkState struct {
	modules        []*object.Module
	targetPlatform platform.Platform
	config         Config

	// Per module: defined symbol name -> placement (filled in by the storage
	// class resolver)
	definitions []map[string]*SymbolAddress

	// Per module: imported symbol name -> exporter's placement
	bindings []map[string]*SymbolAddress

	// Public name -> placement
	exports map[string]*SymbolAddress

	// Per module: offset of the module's code / Normal segment within the
	// image's code / Normal segment
	codeBase []int
	dataBase []int

	image *Image
}

func newLinkState(
	modules []*object.Module,
	targetPlatform platform.Platform,
	config Config,
) *linkState {
	return &linkState{
		modules:        modules,
		targetPlatform: targetPlatform,
		config:         config,
		definitions:    make([]map[string]*SymbolAddress, len(modules)),
		bindings:       make([]map[string]*SymbolAddress, len(modules)),
		exports:        map[string]*SymbolAddress{},
		codeBase:       make([]int, len(modules)),
		dataBase:       make([]int, len(modules)),
		image: &Image{
			CodeAddress:  architecture.PageSize,
			TLSDirectory: map[ModuleId]*TLSTemplate{},
			Symbols:      map[string]SymbolAddress{},
		},
	}
}

// Relocation target lookup: the module's own definitions take precedence,
// then the module's bound imports.
func (state *linkState) target(id ModuleId, name string) *SymbolAddress {
	sym, ok := state.definitions[id][name]
	if ok {
		return sym
	}
	return state.bindings[id][name]
}

// Combine links modules into a single image.  Every error is emitted into
// emitter; if any error is emitted, no image is returned.
func Combine(
	modules []*object.Module,
	targetPlatform platform.Platform,
	config Config,
	emitter *parseutil.Emitter,
) *Image {
	err := config.Validate()
	if err != nil {
		emitter.EmitErrors(err)
		return nil
	}

	state := newLinkState(modules, targetPlatform, config)

	passes := []util.Pass[*linkState]{
		CollectExports(emitter),
		BindImports(emitter),
		ResolveStorage(emitter),
		ApplyRelocations(emitter),
	}

	util.Process(state, passes, emitter.HasErrors)
	if emitter.HasErrors() {
		return nil
	}

	image := state.image
	for _, module := range modules {
		image.Modules = append(image.Modules, module.Name())
	}
	for name, sym := range state.exports {
		image.Symbols[name] = *sym
	}

	return image
}

// Link is Combine with the collected errors joined into a single error.  Use
// errors.As to inspect individual failures.
func Link(
	modules []*object.Module,
	targetPlatform platform.Platform,
	config Config,
) (
	*Image,
	error,
) {
	emitter := &parseutil.Emitter{}
	image := Combine(modules, targetPlatform, config, emitter)
	if emitter.HasErrors() {
		return nil, errors.Join(emitter.Errors()...)
	}
	return image, nil
}
