package loader

import (
	"fmt"
	"sync/atomic"

	"github.com/hemashushu/xiaoxuan-assembly/linker"
	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform/vm"
)

// Thread executes a process's code with its own thread-local storage.
type Thread struct {
	Id ThreadId

	process *Process

	exited atomic.Bool
	detach func() // optional
}

func newThread(process *Process, id ThreadId, detach func()) *Thread {
	return &Thread{
		Id:      id,
		process: process,
		detach:  detach,
	}
}

func (thread *Thread) Process() *Process {
	return thread.process
}

func (thread *Thread) check() error {
	if thread.exited.Load() {
		return fmt.Errorf("%w: %d", ErrThreadExited, thread.Id)
	}
	return nil
}

// Calls the exported function with the given arguments on this thread.
func (thread *Thread) Call(name string, args ...int32) (int32, error) {
	err := thread.check()
	if err != nil {
		return 0, err
	}

	sym, err := thread.process.lookup(name, object.Function)
	if err != nil {
		return 0, err
	}

	machine := &vm.Machine{
		Code:     thread.process.code,
		CodeBase: thread.process.CodeAddress(),
		Memory:   threadMemory{thread},
	}

	return machine.Call(thread.process.Base+sym.Address, args...)
}

// This thread's storage of an exported ThreadLocal symbol.  The storage is
// materialized on first access.
func (thread *Thread) ThreadLocal(name string) (Location, error) {
	err := thread.check()
	if err != nil {
		return Location{}, err
	}

	sym, err := thread.process.lookup(name, object.ThreadLocal)
	if err != nil {
		return Location{}, err
	}

	return thread.process.tls.Access(
		thread.Id,
		sym.Module,
		int(sym.Address),
		sym.Size)
}

// Releases the thread's storage blocks.  The thread is unusable afterward.
// For an attached OS thread, Exit must be called from the attaching
// goroutine.
func (thread *Thread) Exit() {
	if !thread.exited.CompareAndSwap(false, true) {
		return
	}

	thread.process.tls.Release(thread.Id)
	if thread.detach != nil {
		thread.detach()
	}
}

// The vm's view of memory for a single thread.
type threadMemory struct {
	thread *Thread
}

func (memory threadMemory) Load32(address uint64) (uint32, error) {
	return memory.thread.process.Load32(address)
}

func (memory threadMemory) Store32(address uint64, value uint32) error {
	return memory.thread.process.Store32(address, value)
}

func (memory threadMemory) ThreadLocal(
	module uint32,
	offset uint32,
	size int,
) (
	[]byte,
	error,
) {
	loc, err := memory.thread.process.tls.Access(
		memory.thread.Id,
		linker.ModuleId(module),
		int(offset),
		size)
	if err != nil {
		return nil, err
	}
	return loc.Bytes, nil
}
