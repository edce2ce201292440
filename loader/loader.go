package loader

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hemashushu/xiaoxuan-assembly/linker"
	"github.com/hemashushu/xiaoxuan-assembly/object"
)

// Process is a loaded copy of an image.  Each process owns its Normal data
// segment and its TLS registry; the image is never modified.
type Process struct {
	Id    uuid.UUID
	Image *linker.Image

	// Displacement added to every image virtual address.
	Base uint64

	code []byte // rebased
	data []byte

	tls *Registry

	nextThread atomic.Uint64
}

// Load copies the image into a freshly reserved address range and displaces
// every absolute address site by the range's base.  Loading the same image
// twice yields two independent processes whose addresses never alias.
func Load(image *linker.Image) (*Process, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}

	code := make([]byte, len(image.Code))
	copy(code, image.Code)

	data := make([]byte, len(image.Data))
	copy(data, image.Data)

	alignment := uint64(image.DataAlignment)
	if alignment == 0 {
		alignment = 1
	}
	base := globalAddressSpace.reserve(image.Span(), alignment)

	for _, site := range image.AbsoluteSites {
		if site < 0 || site+8 > len(code) {
			return nil, fmt.Errorf(
				"%w: absolute site 0x%x outside of code",
				ErrInvalidImage,
				site)
		}

		address := binary.LittleEndian.Uint64(code[site:])
		binary.LittleEndian.PutUint64(code[site:], address+base)
	}

	process := &Process{
		Id:    uuid.New(),
		Image: image,
		Base:  base,
		code:  code,
		data:  data,
		tls:   NewRegistry(image.TLSDirectory),
	}
	process.nextThread.Store(uint64(firstSyntheticThreadId))

	return process, nil
}

func (process *Process) Registry() *Registry {
	return process.tls
}

func (process *Process) CodeAddress() uint64 {
	return process.Base + process.Image.CodeAddress
}

func (process *Process) DataAddress() uint64 {
	return process.Base + process.Image.DataAddress
}

// The rebased code, as executed by the process's threads.
func (process *Process) Code() []byte {
	code := make([]byte, len(process.code))
	copy(code, process.code)
	return code
}

func (process *Process) lookup(
	name string,
	class object.StorageClass,
) (
	linker.SymbolAddress,
	error,
) {
	sym, ok := process.Image.Lookup(name)
	if !ok {
		return sym, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}

	if sym.Class != class {
		return sym, fmt.Errorf(
			"%w: %s is %s, not %s",
			ErrWrongClass,
			name,
			sym.Class,
			class)
	}

	return sym, nil
}

// Loaded address of an exported Normal or Function symbol.  Thread-local
// symbols have no process-wide address; use Thread.ThreadLocal instead.
func (process *Process) Address(name string) (uint64, error) {
	sym, ok := process.Image.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}

	if sym.Class == object.ThreadLocal {
		return 0, fmt.Errorf(
			"%w: %s is %s",
			ErrWrongClass,
			name,
			sym.Class)
	}

	return process.Base + sym.Address, nil
}

// Storage of an exported Normal symbol.  Every call returns a view of the
// same storage, shared by all threads.
func (process *Process) Normal(name string) (Location, error) {
	sym, err := process.lookup(name, object.Normal)
	if err != nil {
		return Location{}, err
	}

	return process.dataView(process.Base+sym.Address, sym.Size)
}

func (process *Process) dataView(address uint64, size int) (Location, error) {
	start := process.DataAddress()
	if address < start ||
		address-start+uint64(size) > uint64(len(process.data)) {

		return Location{}, fmt.Errorf(
			"%w: 0x%x (%d bytes)",
			ErrSegmentFault,
			address,
			size)
	}

	offset := int(address - start)
	return Location{
		Address: address,
		Bytes:   process.data[offset : offset+size : offset+size],
	}, nil
}

func (process *Process) Load32(address uint64) (uint32, error) {
	loc, err := process.dataView(address, 4)
	if err != nil {
		return 0, err
	}
	return loc.Uint32(), nil
}

func (process *Process) Store32(address uint64, value uint32) error {
	loc, err := process.dataView(address, 4)
	if err != nil {
		return err
	}
	loc.SetUint32(value)
	return nil
}

// Returns a new synthetic thread.  The thread may be used from any goroutine,
// but not from multiple goroutines at once.
func (process *Process) NewThread() *Thread {
	id := ThreadId(process.nextThread.Add(1) - 1)
	return newThread(process, id, nil)
}
