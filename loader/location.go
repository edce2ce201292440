package loader

import (
	"encoding/binary"
)

// A view of loaded storage: Normal data within a process's data segment, or
// thread-local data within a thread's storage block.  Writes through the view
// are visible to code running in the process (for thread-local data, only to
// code running on the owning thread).
type Location struct {
	Address uint64
	Bytes   []byte
}

func (loc Location) Size() int {
	return len(loc.Bytes)
}

func (loc Location) Uint32() uint32 {
	return binary.LittleEndian.Uint32(loc.Bytes)
}

func (loc Location) SetUint32(value uint32) {
	binary.LittleEndian.PutUint32(loc.Bytes, value)
}

func (loc Location) Int32() int32 {
	return int32(loc.Uint32())
}

func (loc Location) SetInt32(value int32) {
	loc.SetUint32(uint32(value))
}
