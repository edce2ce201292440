package linker

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
	"github.com/hemashushu/xiaoxuan-assembly/platform/vm"
)

var testPlatform = vm.NewPlatform(platform.Linux)

type moduleBuilder struct {
	t *testing.T
	*object.Builder
}

func newModuleBuilder(t *testing.T, name string) *moduleBuilder {
	return &moduleBuilder{
		t:       t,
		Builder: object.NewBuilder(name, object.DefaultLimits()),
	}
}

func (builder *moduleBuilder) data(
	name string,
	class object.StorageClass,
	visibility object.Visibility,
	initializer ...byte,
) *moduleBuilder {
	_, err := builder.Declare(name, class, visibility, 4, 4, initializer)
	if err != nil {
		builder.t.Fatalf("unexpected error: %v", err)
	}
	return builder
}

func (builder *moduleBuilder) imports(
	name string,
	class object.StorageClass,
) *moduleBuilder {
	_, err := builder.Declare(name, class, object.Imported, 0, 0, nil)
	if err != nil {
		builder.t.Fatalf("unexpected error: %v", err)
	}
	return builder
}

func (builder *moduleBuilder) function(
	name string,
	visibility object.Visibility,
	body func(*vm.Assembler),
) *moduleBuilder {
	asm := vm.NewAssembler()
	body(asm)
	_, err := builder.DefineFunction(name, visibility, asm.Segment())
	if err != nil {
		builder.t.Fatalf("unexpected error: %v", err)
	}
	return builder
}

func (builder *moduleBuilder) build() *object.Module {
	module, err := builder.Finalize()
	if err != nil {
		builder.t.Fatalf("unexpected error: %v", err)
	}
	return module
}

func libData(t *testing.T) *object.Module {
	return newModuleBuilder(t, "libdata").
		data("normal_var", object.Normal, object.Exported, 5).
		data("tls_var", object.ThreadLocal, object.Exported).
		data("tls_seed", object.ThreadLocal, object.Exported, 42).
		function("get_normal_var", object.Exported, func(asm *vm.Assembler) {
			asm.Load32("normal_var")
			asm.Ret()
		}).
		build()
}

func driver(t *testing.T) *object.Module {
	return newModuleBuilder(t, "driver").
		imports("normal_var", object.Normal).
		imports("tls_seed", object.ThreadLocal).
		imports("get_normal_var", object.Function).
		data("local_var", object.Normal, object.Local, 1).
		function("run", object.Exported, func(asm *vm.Assembler) {
			asm.Call("get_normal_var", 0)
			asm.TLSLoad32("tls_seed")
			asm.Add()
			asm.Load32("local_var")
			asm.Add()
			asm.Ret()
		}).
		build()
}

func TestLinkResolvesAcrossModules(t *testing.T) {
	libdata := libData(t)
	drv := driver(t)

	image, err := Link(
		[]*object.Module{libdata, drv},
		testPlatform,
		DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"libdata", "driver"}, image.Modules); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}

	if image.CodeAddress != architecture.PageSize {
		t.Errorf("unexpected code address 0x%x", image.CodeAddress)
	}
	if image.DataAddress != 2*architecture.PageSize {
		t.Errorf("unexpected data address 0x%x", image.DataAddress)
	}

	normalVar, ok := image.Lookup("normal_var")
	if !ok || normalVar.Address != image.DataAddress {
		t.Errorf("unexpected normal_var %+v", normalVar)
	}

	tlsSeed, ok := image.Lookup("tls_seed")
	if !ok || tlsSeed.Address != 4 || tlsSeed.Module != 0 {
		t.Errorf("unexpected tls_seed %+v", tlsSeed)
	}

	getNormalVar, ok := image.Lookup("get_normal_var")
	if !ok || getNormalVar.Address != image.CodeAddress {
		t.Errorf("unexpected get_normal_var %+v", getNormalVar)
	}

	run, ok := image.Lookup("run")
	if !ok || run.Address != image.CodeAddress+16 {
		t.Errorf("unexpected run %+v", run)
	}

	_, ok = image.Lookup("local_var")
	if ok {
		t.Error("local symbols should not be in the image symbol table")
	}

	// libdata's normal segment (4 bytes), then driver's local_var
	expectedData := []byte{5, 0, 0, 0, 1, 0, 0, 0}
	if diff := cmp.Diff(expectedData, image.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	if len(image.TLSDirectory) != 1 {
		t.Fatalf("expected 1 tls template, got %d", len(image.TLSDirectory))
	}
	template, ok := image.TLSTemplate(0)
	if !ok {
		t.Fatal("expected libdata tls template")
	}
	if diff := cmp.Diff([]byte{0, 0, 0, 0, 42, 0, 0, 0}, template.Bytes); diff != "" {
		t.Errorf("template mismatch (-want +got):\n%s", diff)
	}
	if template.Size != 8 || template.Alignment != 4 {
		t.Errorf("unexpected template %+v", template)
	}

	// padding between modules
	for idx := libdata.CodeSize(); idx < 16; idx++ {
		if image.Code[idx] != byte(vm.Nop) {
			t.Errorf("expected nop padding at %d", idx)
		}
	}

	if len(image.Relocations) != 5 {
		t.Fatalf("expected 5 relocations, got %d", len(image.Relocations))
	}

	for _, reloc := range image.Relocations {
		if reloc.State != object.Resolved {
			t.Errorf("relocation not resolved: %+v", reloc)
		}

		site := image.Code[reloc.Site-image.CodeAddress:]
		switch reloc.Kind {
		case platform.Abs64Relocation:
			target, _ := image.Lookup(reloc.Symbol)
			if reloc.Symbol == "local_var" {
				target.Address = image.DataAddress + 4
			}
			if binary.LittleEndian.Uint64(site) != target.Address {
				t.Errorf("bad abs64 patch for %s", reloc.Symbol)
			}
		case platform.Rel32Relocation:
			rel := int32(binary.LittleEndian.Uint32(site))
			if reloc.Site+uint64(int64(rel)) != getNormalVar.Address {
				t.Errorf("bad rel32 patch for %s", reloc.Symbol)
			}
		case platform.TLSOffsetRelocation:
			if binary.LittleEndian.Uint32(site) != 4 {
				t.Errorf("bad tlsoff patch for %s", reloc.Symbol)
			}
		case platform.TLSModuleRelocation:
			if binary.LittleEndian.Uint32(site) != 0 {
				t.Errorf("bad tlsmod patch for %s", reloc.Symbol)
			}
		}
	}

	if len(image.AbsoluteSites) != 2 {
		t.Errorf("expected 2 absolute sites, got %d", len(image.AbsoluteSites))
	}

	// input modules are never modified
	for _, reloc := range drv.Relocations() {
		if reloc.State != object.Recorded {
			t.Errorf("input relocation modified: %+v", reloc)
		}
	}
}

func TestCombineClassMismatch(t *testing.T) {
	a := newModuleBuilder(t, "a").
		imports("count", object.Normal).
		function("read_count", object.Exported, func(asm *vm.Assembler) {
			asm.Load32("count")
			asm.Ret()
		}).
		build()
	b := newModuleBuilder(t, "b").
		data("count", object.ThreadLocal, object.Exported).
		build()

	emitter := &parseutil.Emitter{}
	image := Combine([]*object.Module{a, b}, testPlatform, DefaultConfig(), emitter)
	if image != nil {
		t.Error("expected no image")
	}

	errs := emitter.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}

	mismatch := &SymbolClassMismatchError{}
	if !errors.As(errs[0], &mismatch) {
		t.Fatalf("expected class mismatch, got %v", errs[0])
	}

	expected := &SymbolClassMismatchError{
		Module:   "a",
		Name:     "count",
		Expected: object.Normal,
		Found:    object.ThreadLocal,
		Exporter: "b",
	}
	if diff := cmp.Diff(expected, mismatch); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineUnresolvedSymbol(t *testing.T) {
	a := newModuleBuilder(t, "a").
		imports("missing", object.Function).
		function("f", object.Exported, func(asm *vm.Assembler) {
			asm.Call("missing", 0)
			asm.Ret()
		}).
		build()

	image, err := Link([]*object.Module{a}, testPlatform, DefaultConfig())
	if image != nil {
		t.Error("expected no image")
	}

	unresolved := &UnresolvedSymbolError{}
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected unresolved symbol, got %v", err)
	}
	if unresolved.Name != "missing" {
		t.Errorf("unexpected name %s", unresolved.Name)
	}
}

func TestCombineUndeclaredRelocationTarget(t *testing.T) {
	a := newModuleBuilder(t, "a").
		function("f", object.Exported, func(asm *vm.Assembler) {
			asm.Load32("nowhere")
			asm.Ret()
		}).
		build()

	_, err := Link([]*object.Module{a}, testPlatform, DefaultConfig())

	unresolved := &UnresolvedSymbolError{}
	if !errors.As(err, &unresolved) || unresolved.Name != "nowhere" {
		t.Fatalf("expected unresolved nowhere, got %v", err)
	}
}

func TestCombineDuplicateExport(t *testing.T) {
	a := newModuleBuilder(t, "a").
		data("x", object.Normal, object.Exported).
		build()
	b := newModuleBuilder(t, "b").
		data("x", object.Normal, object.Local).
		build()
	c := newModuleBuilder(t, "c").
		data("x", object.ThreadLocal, object.Exported).
		build()

	_, err := Link([]*object.Module{a, b, c}, testPlatform, DefaultConfig())

	duplicate := &DuplicateExportError{}
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected duplicate export, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, duplicate.Modules); diff != "" {
		t.Errorf("exporters mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineDuplicateModule(t *testing.T) {
	a := newModuleBuilder(t, "a").build()
	b := newModuleBuilder(t, "a").build()

	_, err := Link([]*object.Module{a, b}, testPlatform, DefaultConfig())

	duplicate := &DuplicateModuleError{}
	if !errors.As(err, &duplicate) || duplicate.Name != "a" {
		t.Fatalf("expected duplicate module, got %v", err)
	}
}

func TestCombineRelocationClass(t *testing.T) {
	a := newModuleBuilder(t, "a").
		data("t", object.ThreadLocal, object.Local).
		data("n", object.Normal, object.Local).
		function("f", object.Exported, func(asm *vm.Assembler) {
			asm.Load32("t")
			asm.TLSLoad32("n")
			asm.Ret()
		}).
		build()

	emitter := &parseutil.Emitter{}
	image := Combine([]*object.Module{a}, testPlatform, DefaultConfig(), emitter)
	if image != nil {
		t.Error("expected no image")
	}

	errs := emitter.Errors()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}

	kinds := []platform.RelocationKind{}
	for _, err := range errs {
		classErr := &RelocationClassError{}
		if !errors.As(err, &classErr) {
			t.Fatalf("expected relocation class error, got %v", err)
		}
		kinds = append(kinds, classErr.Kind)
	}

	expected := []platform.RelocationKind{
		platform.Abs64Relocation,
		platform.TLSModuleRelocation,
		platform.TLSOffsetRelocation,
	}
	if diff := cmp.Diff(expected, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineCollectsAllErrors(t *testing.T) {
	a := newModuleBuilder(t, "a").
		imports("x", object.Normal).
		imports("y", object.Function).
		build()

	emitter := &parseutil.Emitter{}
	image := Combine([]*object.Module{a}, testPlatform, DefaultConfig(), emitter)
	if image != nil {
		t.Error("expected no image")
	}
	if len(emitter.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %v", emitter.Errors())
	}
}

func TestCombineInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.DataAlignment = 3

	_, err := Link(nil, testPlatform, config)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}

	config = DefaultConfig()
	config.MaxAlignment = 2 * config.DataAlignment

	_, err = Link(nil, testPlatform, config)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}
}

func TestCombineNormalSegmentOverflow(t *testing.T) {
	a := newModuleBuilder(t, "a").data("x", object.Normal, object.Exported).build()
	b := newModuleBuilder(t, "b").data("y", object.Normal, object.Exported).build()

	config := DefaultConfig()
	config.MaxSegmentSize = 6

	_, err := Link([]*object.Module{a, b}, testPlatform, config)

	overflow := &object.AlignmentOverflowError{}
	if !errors.As(err, &overflow) || overflow.Module != "b" {
		t.Fatalf("expected overflow in b, got %v", err)
	}
}

func TestCombineModuleAlignmentExceedsConfig(t *testing.T) {
	limits := object.DefaultLimits()
	limits.MaxAlignment = 1 << 16

	for _, class := range []object.StorageClass{
		object.Normal,
		object.ThreadLocal,
	} {
		builder := object.NewBuilder("wide", limits)
		_, err := builder.Declare("small", class, object.Exported, 4, 4, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = builder.Declare("big", class, object.Exported, 4, 1<<16, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		module, err := builder.Finalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		image, err := Link([]*object.Module{module}, testPlatform, DefaultConfig())
		if image != nil {
			t.Errorf("%s: expected no image", class)
		}

		overflow := &object.AlignmentOverflowError{}
		if !errors.As(err, &overflow) {
			t.Fatalf("%s: expected alignment overflow, got %v", class, err)
		}
		if overflow.Module != "wide" ||
			overflow.Name != "big" ||
			overflow.Alignment != 1<<16 ||
			overflow.Limit != architecture.PageSize {

			t.Errorf("%s: unexpected error %+v", class, overflow)
		}
	}
}

func TestCodeAlignment(t *testing.T) {
	body := func(asm *vm.Assembler) {
		asm.Push(1)
		asm.Ret()
	}
	a := newModuleBuilder(t, "a").function("f", object.Exported, body).build()
	b := newModuleBuilder(t, "b").function("g", object.Exported, body).build()

	config := DefaultConfig()
	config.CodeAlignment = 64

	image, err := Link([]*object.Module{a, b}, testPlatform, config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := image.Lookup("g")
	if g.Address != image.CodeAddress+64 {
		t.Errorf("expected g at code + 64, got 0x%x", g.Address)
	}
	if len(image.Code) != 64+b.CodeSize() {
		t.Errorf("unexpected code size %d", len(image.Code))
	}
	if image.Span() != image.DataAddress {
		t.Errorf("expected empty data, span 0x%x", image.Span())
	}
}

func TestImageString(t *testing.T) {
	image, err := Link(
		[]*object.Module{libData(t), driver(t)},
		testPlatform,
		DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := ImageString(image, "  ")
	if output == "" {
		t.Fatal("expected output")
	}

	expectedPrefix := "Image:\n  [0] libdata\n  [1] driver\n"
	if len(output) < len(expectedPrefix) ||
		output[:len(expectedPrefix)] != expectedPrefix {

		t.Errorf("unexpected output:\n%s", output)
	}
}
