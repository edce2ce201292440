package object

import (
	"errors"

	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

var ErrFinalized = errors.New("module already finalized")

type Limits struct {
	MaxAlignment   int `yaml:"max_alignment"`
	MaxSegmentSize int `yaml:"max_segment_size"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxAlignment:   architecture.PageSize,
		MaxSegmentSize: 1 << 24,
	}
}

// Builder collects a single module's symbols, code and relocations.  The
// first error aborts the build: every subsequent call (including Finalize)
// returns that error.
type Builder struct {
	name   string
	limits Limits

	symbols []Symbol
	byName  map[string]SymbolId

	code        []byte
	relocations []Relocation

	err    error
	module *Module
}

func NewBuilder(name string, limits Limits) *Builder {
	return &Builder{
		name:   name,
		limits: limits,
		byName: map[string]SymbolId{},
	}
}

func (builder *Builder) Name() string {
	return builder.name
}

// Returns the sticky build error, if any.
func (builder *Builder) Err() error {
	return builder.err
}

func (builder *Builder) check() error {
	if builder.err != nil {
		return builder.err
	}
	if builder.module != nil {
		return ErrFinalized
	}
	return nil
}

func (builder *Builder) fail(err error) error {
	builder.err = err
	return err
}

func (builder *Builder) Declare(
	name string,
	class StorageClass,
	visibility Visibility,
	size int,
	alignment int,
	initializer []byte, // optional
) (
	SymbolId,
	error,
) {
	return builder.DeclareAt(
		parseutil.Location{},
		name,
		class,
		visibility,
		size,
		alignment,
		initializer)
}

func (builder *Builder) DeclareAt(
	loc parseutil.Location,
	name string,
	class StorageClass,
	visibility Visibility,
	size int,
	alignment int,
	initializer []byte, // optional
) (
	SymbolId,
	error,
) {
	err := builder.check()
	if err != nil {
		return -1, err
	}

	if class == Function && visibility != Imported {
		return -1, builder.fail(&InvalidDeclarationError{
			Module:   builder.name,
			Name:     name,
			Reason:   "function definition requires code",
			Location: loc,
		})
	}

	return builder.declare(Symbol{
		Name:        name,
		Class:       class,
		Visibility:  visibility,
		Size:        size,
		Alignment:   alignment,
		Initializer: cloneInitializer(initializer),
		Offset:      -1,
		Location:    loc,
	})
}

func cloneInitializer(initializer []byte) []byte {
	if initializer == nil {
		return nil
	}
	return cloneBytes(initializer)
}

func (builder *Builder) invalid(sym Symbol, reason string) error {
	return builder.fail(&InvalidDeclarationError{
		Module:   builder.name,
		Name:     sym.Name,
		Reason:   reason,
		Location: sym.Location,
	})
}

func (builder *Builder) declare(sym Symbol) (SymbolId, error) {
	if sym.Name == "" {
		return -1, builder.invalid(sym, "empty symbol name")
	}
	if !sym.Class.IsValid() {
		return -1, builder.invalid(sym, "unknown storage class "+string(sym.Class))
	}
	if !sym.Visibility.IsValid() {
		return -1, builder.invalid(sym, "unknown visibility "+string(sym.Visibility))
	}

	prevId, ok := builder.byName[sym.Name]
	if ok {
		return -1, builder.fail(&DuplicateSymbolError{
			Module:   builder.name,
			Name:     sym.Name,
			Location: sym.Location,
			Previous: builder.symbols[prevId].Location,
		})
	}

	switch {
	case sym.Visibility == Imported:
		if sym.Initializer != nil {
			return -1, builder.invalid(sym, "imported symbol cannot have initializer")
		}
		sym.Alignment = 0
	case sym.Class == Function:
		sym.Alignment = 1
	default:
		if sym.Size <= 0 {
			return -1, builder.invalid(sym, "data symbol size must be positive")
		}
		if sym.Alignment == 0 {
			sym.Alignment = 1
		}
		if !architecture.IsValidAlignment(sym.Alignment) ||
			sym.Alignment > builder.limits.MaxAlignment {

			return -1, builder.fail(&AlignmentOverflowError{
				Module:    builder.name,
				Name:      sym.Name,
				Alignment: sym.Alignment,
				Limit:     builder.limits.MaxAlignment,
				Location:  sym.Location,
			})
		}
		if len(sym.Initializer) > sym.Size {
			return -1, builder.fail(&InitializerSizeError{
				Module:   builder.name,
				Name:     sym.Name,
				Size:     sym.Size,
				Length:   len(sym.Initializer),
				Location: sym.Location,
			})
		}
	}

	sym.Id = SymbolId(len(builder.symbols))
	builder.symbols = append(builder.symbols, sym)
	builder.byName[sym.Name] = sym.Id
	return sym.Id, nil
}

func (builder *Builder) DefineFunction(
	name string,
	visibility Visibility,
	segment platform.Segment,
) (
	SymbolId,
	error,
) {
	return builder.DefineFunctionAt(parseutil.Location{}, name, visibility, segment)
}

func (builder *Builder) DefineFunctionAt(
	loc parseutil.Location,
	name string,
	visibility Visibility,
	segment platform.Segment,
) (
	SymbolId,
	error,
) {
	err := builder.check()
	if err != nil {
		return -1, err
	}

	sym := Symbol{
		Name:       name,
		Class:      Function,
		Visibility: visibility,
		Size:       len(segment.Bytes),
		Offset:     len(builder.code),
		Location:   loc,
	}

	if visibility == Imported {
		return -1, builder.invalid(sym, "imported function cannot have code")
	}
	if len(segment.Bytes) == 0 {
		return -1, builder.invalid(sym, "empty function body")
	}

	id, err := builder.declare(sym)
	if err != nil {
		return -1, err
	}

	entry := builder.AppendCode(segment.Bytes)
	for _, reloc := range segment.Relocations {
		err := builder.RecordReference(entry+reloc.Offset, reloc.Symbol, reloc.Kind)
		if err != nil {
			return -1, err
		}
	}

	return id, nil
}

// Appends raw code bytes and returns their offset within the module's code.
func (builder *Builder) AppendCode(code []byte) int {
	offset := len(builder.code)
	if builder.check() != nil {
		return offset
	}
	builder.code = append(builder.code, code...)
	return offset
}

// Bump allocates every defined data symbol into its storage class's segment
// (in declaration order) and freezes the module.
func (builder *Builder) Finalize() (*Module, error) {
	if builder.module != nil {
		return builder.module, nil
	}
	if builder.err != nil {
		return nil, builder.err
	}

	normal := architecture.NewSegmentLayout(
		architecture.NormalSegment,
		builder.limits.MaxSegmentSize)
	tls := architecture.NewSegmentLayout(
		architecture.ThreadLocalSegment,
		builder.limits.MaxSegmentSize)

	for idx := range builder.symbols {
		sym := &builder.symbols[idx]
		if !sym.IsDefined() || !sym.Class.IsData() {
			continue
		}

		layout := normal
		if sym.Class == ThreadLocal {
			layout = tls
		}

		loc := architecture.NewDataLocation(
			sym.Name,
			layout.Kind,
			sym.Size,
			sym.Alignment,
			sym.Initializer)

		err := layout.Add(loc)
		if err != nil {
			return nil, builder.fail(&AlignmentOverflowError{
				Module:    builder.name,
				Name:      sym.Name,
				Alignment: sym.Alignment,
				Limit:     builder.limits.MaxSegmentSize,
				Location:  sym.Location,
			})
		}

		sym.Offset = loc.Offset
	}

	byName := make(map[string]SymbolId, len(builder.byName))
	for name, id := range builder.byName {
		byName[name] = id
	}

	builder.module = &Module{
		name:          builder.name,
		symbols:       builder.symbols,
		byName:        byName,
		code:          builder.code,
		relocations:   builder.relocations,
		layout:        LayoutPlan{Normal: normal, ThreadLocal: tls},
		normalSegment: normal.Bytes(),
		tlsTemplate:   tls.Bytes(),
	}
	return builder.module, nil
}
