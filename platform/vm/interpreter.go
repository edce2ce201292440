package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	DefaultMaxCallDepth = 1024
)

var (
	ErrBadOpcode      = errors.New("bad opcode")
	ErrTruncated      = errors.New("truncated instruction")
	ErrPCOutOfRange   = errors.New("program counter out of range")
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrBadArgument    = errors.New("argument index out of range")
	ErrCallDepth      = errors.New("maximum call depth exceeded")
)

// Memory is the machine's view of data storage for a single thread.  Normal
// data is addressed by absolute address.  Thread-local data is addressed by
// (module, offset) and is resolved against the calling thread's storage
// block.
type Memory interface {
	Load32(address uint64) (uint32, error)
	Store32(address uint64, value uint32) error

	// Returns a view of size bytes at offset of the calling thread's storage
	// block for the module.
	ThreadLocal(module uint32, offset uint32, size int) ([]byte, error)
}

// Machine executes linked code on behalf of a single thread.  A Machine must
// not be shared between threads.
type Machine struct {
	Code []byte

	// Absolute address of Code[0]
	CodeBase uint64

	Memory Memory

	MaxCallDepth int // DefaultMaxCallDepth when zero
}

func (machine *Machine) Call(entry uint64, args ...int32) (int32, error) {
	maxDepth := machine.MaxCallDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxCallDepth
	}

	return machine.run(entry, args, maxDepth)
}

type frame struct {
	machine *Machine
	args    []int32
	stack   []int32
	pc      int
}

func (f *frame) pop() (int32, error) {
	if len(f.stack) == 0 {
		return 0, fmt.Errorf("%w at 0x%x", ErrStackUnderflow, f.address())
	}
	top := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return top, nil
}

func (f *frame) push(value int32) {
	f.stack = append(f.stack, value)
}

func (f *frame) address() uint64 {
	return f.machine.CodeBase + uint64(f.pc)
}

func (machine *Machine) run(
	entry uint64,
	args []int32,
	remainingDepth int,
) (
	int32,
	error,
) {
	if remainingDepth <= 0 {
		return 0, ErrCallDepth
	}

	if entry < machine.CodeBase ||
		entry-machine.CodeBase >= uint64(len(machine.Code)) {

		return 0, fmt.Errorf("%w: call to 0x%x", ErrPCOutOfRange, entry)
	}

	f := &frame{
		machine: machine,
		args:    args,
		pc:      int(entry - machine.CodeBase),
	}

	for {
		if f.pc >= len(machine.Code) {
			return 0, fmt.Errorf("%w: 0x%x", ErrPCOutOfRange, f.address())
		}

		op := Opcode(machine.Code[f.pc])
		length, ok := instructionLengths[op]
		if !ok {
			return 0, fmt.Errorf("%w %s at 0x%x", ErrBadOpcode, op, f.address())
		}
		if f.pc+length > len(machine.Code) {
			return 0, fmt.Errorf("%w: %s at 0x%x", ErrTruncated, op, f.address())
		}

		operand := machine.Code[f.pc+1 : f.pc+length]

		switch op {
		case Nop:
		case Push:
			f.push(int32(binary.LittleEndian.Uint32(operand)))
		case Arg:
			idx := int(operand[0])
			if idx >= len(f.args) {
				return 0, fmt.Errorf(
					"%w: arg %d at 0x%x (%d arguments)",
					ErrBadArgument,
					idx,
					f.address(),
					len(f.args))
			}
			f.push(f.args[idx])
		case Add:
			b, err := f.pop()
			if err != nil {
				return 0, err
			}
			a, err := f.pop()
			if err != nil {
				return 0, err
			}
			f.push(a + b)
		case Drop:
			_, err := f.pop()
			if err != nil {
				return 0, err
			}
		case Load32:
			value, err := machine.Memory.Load32(
				binary.LittleEndian.Uint64(operand))
			if err != nil {
				return 0, err
			}
			f.push(int32(value))
		case Store32:
			value, err := f.pop()
			if err != nil {
				return 0, err
			}
			err = machine.Memory.Store32(
				binary.LittleEndian.Uint64(operand),
				uint32(value))
			if err != nil {
				return 0, err
			}
		case TLSLoad32, TLSStore32:
			storage, err := machine.Memory.ThreadLocal(
				binary.LittleEndian.Uint32(operand[0:4]),
				binary.LittleEndian.Uint32(operand[4:8]),
				4)
			if err != nil {
				return 0, err
			}

			if op == TLSLoad32 {
				f.push(int32(binary.LittleEndian.Uint32(storage)))
			} else {
				value, err := f.pop()
				if err != nil {
					return 0, err
				}
				binary.LittleEndian.PutUint32(storage, uint32(value))
			}
		case Call:
			site := f.address() + 1
			target := site + uint64(int64(int32(binary.LittleEndian.Uint32(operand))))

			argc := int(operand[4])
			if argc > len(f.stack) {
				return 0, fmt.Errorf("%w at 0x%x", ErrStackUnderflow, f.address())
			}
			callArgs := make([]int32, argc)
			copy(callArgs, f.stack[len(f.stack)-argc:])
			f.stack = f.stack[:len(f.stack)-argc]

			result, err := machine.run(target, callArgs, remainingDepth-1)
			if err != nil {
				return 0, err
			}
			f.push(result)
		case Ret:
			if len(f.stack) == 0 {
				return 0, nil
			}
			return f.stack[len(f.stack)-1], nil
		}

		f.pc += length
	}
}
