package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// All multi-byte operands are little endian.  Values on the operand stack are
// 32-bit signed integers.
type Opcode byte

const (
	Nop = Opcode(iota)

	// push <imm32>
	Push

	// arg <idx8>: push the idx-th argument of the current call
	Arg

	// pop b, pop a, push a + b
	Add

	// pop and discard
	Drop

	// load32 <abs64>: push the 32-bit value stored at the absolute address
	Load32

	// store32 <abs64>: pop and store to the absolute address
	Store32

	// tlsload32 <mod32> <off32>: push the 32-bit value stored at the given
	// offset of the calling thread's storage block for the given module
	TLSLoad32

	// tlsstore32 <mod32> <off32>: pop and store to the calling thread's
	// storage block
	TLSStore32

	// call <rel32> <argc8>: pop argc arguments (last argument on top), call
	// the function at (address of rel32 + rel32), push its result
	Call

	// return the top of the stack (or zero if the stack is empty)
	Ret
)

var (
	mnemonics = map[Opcode]string{
		Nop:        "nop",
		Push:       "push",
		Arg:        "arg",
		Add:        "add",
		Drop:       "drop",
		Load32:     "load32",
		Store32:    "store32",
		TLSLoad32:  "tlsload32",
		TLSStore32: "tlsstore32",
		Call:       "call",
		Ret:        "ret",
	}

	// Encoded instruction length, including the opcode byte.
	instructionLengths = map[Opcode]int{
		Nop:        1,
		Push:       5,
		Arg:        2,
		Add:        1,
		Drop:       1,
		Load32:     9,
		Store32:    9,
		TLSLoad32:  9,
		TLSStore32: 9,
		Call:       6,
		Ret:        1,
	}
)

func (op Opcode) String() string {
	name, ok := mnemonics[op]
	if !ok {
		return fmt.Sprintf("opcode(0x%02x)", byte(op))
	}
	return name
}

func LookupOpcode(mnemonic string) (Opcode, bool) {
	for op, name := range mnemonics {
		if name == mnemonic {
			return op, true
		}
	}
	return 0, false
}

func nop(length int) []byte {
	result := make([]byte, length)
	for idx := range result {
		result[idx] = byte(Nop)
	}
	return result
}

// Assembler encodes a single function's instructions into a relocatable
// platform.Segment.  Symbol references are left zeroed and recorded as
// relocations relative to the beginning of the segment.
type Assembler struct {
	bytes       []byte
	relocations []platform.Relocation
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (asm *Assembler) Len() int {
	return len(asm.bytes)
}

func (asm *Assembler) emit(op Opcode, operandBytes int) []byte {
	start := len(asm.bytes)
	asm.bytes = append(asm.bytes, byte(op))
	asm.bytes = append(asm.bytes, make([]byte, operandBytes)...)
	return asm.bytes[start+1:]
}

func (asm *Assembler) reference(
	kind platform.RelocationKind,
	offset int,
	symbol string,
) {
	asm.relocations = append(
		asm.relocations,
		platform.Relocation{
			Kind:   kind,
			Offset: offset,
			Symbol: symbol,
		})
}

func (asm *Assembler) Nop() {
	asm.emit(Nop, 0)
}

func (asm *Assembler) Push(value int32) {
	operand := asm.emit(Push, 4)
	binary.LittleEndian.PutUint32(operand, uint32(value))
}

func (asm *Assembler) Arg(index uint8) {
	operand := asm.emit(Arg, 1)
	operand[0] = index
}

func (asm *Assembler) Add() {
	asm.emit(Add, 0)
}

func (asm *Assembler) Drop() {
	asm.emit(Drop, 0)
}

func (asm *Assembler) Load32(symbol string) {
	site := len(asm.bytes) + 1
	asm.emit(Load32, 8)
	asm.reference(platform.Abs64Relocation, site, symbol)
}

func (asm *Assembler) Store32(symbol string) {
	site := len(asm.bytes) + 1
	asm.emit(Store32, 8)
	asm.reference(platform.Abs64Relocation, site, symbol)
}

func (asm *Assembler) tlsAccess(op Opcode, symbol string) {
	site := len(asm.bytes) + 1
	asm.emit(op, 8)
	asm.reference(platform.TLSModuleRelocation, site, symbol)
	asm.reference(platform.TLSOffsetRelocation, site+4, symbol)
}

func (asm *Assembler) TLSLoad32(symbol string) {
	asm.tlsAccess(TLSLoad32, symbol)
}

func (asm *Assembler) TLSStore32(symbol string) {
	asm.tlsAccess(TLSStore32, symbol)
}

func (asm *Assembler) Call(symbol string, argc uint8) {
	site := len(asm.bytes) + 1
	operand := asm.emit(Call, 5)
	operand[4] = argc
	asm.reference(platform.Rel32Relocation, site, symbol)
}

func (asm *Assembler) Ret() {
	asm.emit(Ret, 0)
}

func (asm *Assembler) Segment() platform.Segment {
	bytes := make([]byte, len(asm.bytes))
	copy(bytes, asm.bytes)

	relocations := make([]platform.Relocation, len(asm.relocations))
	copy(relocations, asm.relocations)

	return platform.Segment{
		Bytes:       bytes,
		Relocations: relocations,
	}
}
