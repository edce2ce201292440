package manifest

import (
	"encoding/binary"

	"github.com/pattyshack/gt/parseutil"

	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
	"github.com/hemashushu/xiaoxuan-assembly/platform/vm"
)

func (spec *ModuleSpec) Build(limits object.Limits) (*object.Module, error) {
	if spec.Name == "" {
		return nil, parseutil.NewLocationError(spec.Location, "module has no name")
	}

	builder := object.NewBuilder(spec.Name, limits)

	for _, imp := range spec.Imports {
		_, err := builder.DeclareAt(
			imp.Location,
			imp.Name,
			imp.Class,
			object.Imported,
			0,
			0,
			nil)
		if err != nil {
			return nil, err
		}
	}

	for _, data := range spec.Data {
		err := data.declare(builder)
		if err != nil {
			return nil, err
		}
	}

	for _, function := range spec.Functions {
		segment, err := function.assemble()
		if err != nil {
			return nil, err
		}

		_, err = builder.DefineFunctionAt(
			function.Location,
			function.Name,
			function.Visibility,
			segment)
		if err != nil {
			return nil, err
		}
	}

	return builder.Finalize()
}

func (spec *DataSpec) initializer() ([]byte, error) {
	if spec.Value != nil {
		if spec.Init != nil {
			return nil, parseutil.NewLocationError(
				spec.Location,
				"data (%s) has both init and value",
				spec.Name)
		}

		bytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(bytes, uint32(*spec.Value))
		return bytes, nil
	}

	if spec.Init == nil {
		return nil, nil
	}

	bytes := make([]byte, 0, len(spec.Init))
	for _, value := range spec.Init {
		if value < 0 || value > 0xff {
			return nil, parseutil.NewLocationError(
				spec.Location,
				"data (%s) init value %d is not a byte",
				spec.Name,
				value)
		}
		bytes = append(bytes, byte(value))
	}
	return bytes, nil
}

func (spec *DataSpec) declare(builder *object.Builder) error {
	initializer, err := spec.initializer()
	if err != nil {
		return err
	}

	size := spec.Size
	if size == 0 {
		size = len(initializer)
	}

	visibility := spec.Visibility
	if visibility == "" {
		visibility = object.Local
	}

	_, err = builder.DeclareAt(
		spec.Location,
		spec.Name,
		spec.Class,
		visibility,
		size,
		spec.Alignment,
		initializer)
	return err
}

func (spec *FunctionSpec) assemble() (platform.Segment, error) {
	asm := vm.NewAssembler()
	for _, inst := range spec.Code {
		op, ok := vm.LookupOpcode(inst.Op)
		if !ok {
			return platform.Segment{}, parseutil.NewLocationError(
				inst.Location,
				"function (%s): unknown instruction (%s)",
				spec.Name,
				inst.Op)
		}

		switch op {
		case vm.Load32, vm.Store32, vm.TLSLoad32, vm.TLSStore32, vm.Call:
			if inst.Symbol == "" {
				return platform.Segment{}, parseutil.NewLocationError(
					inst.Location,
					"function (%s): %s requires a symbol",
					spec.Name,
					op)
			}
		}

		switch op {
		case vm.Nop:
			asm.Nop()
		case vm.Push:
			asm.Push(inst.Value)
		case vm.Arg:
			asm.Arg(inst.Index)
		case vm.Add:
			asm.Add()
		case vm.Drop:
			asm.Drop()
		case vm.Load32:
			asm.Load32(inst.Symbol)
		case vm.Store32:
			asm.Store32(inst.Symbol)
		case vm.TLSLoad32:
			asm.TLSLoad32(inst.Symbol)
		case vm.TLSStore32:
			asm.TLSStore32(inst.Symbol)
		case vm.Call:
			asm.Call(inst.Symbol, inst.Argc)
		case vm.Ret:
			asm.Ret()
		default:
			panic("unhandled opcode: " + op.String())
		}
	}

	return asm.Segment(), nil
}
