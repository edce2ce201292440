package loader

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hemashushu/xiaoxuan-assembly/linker"
)

// Thread identity.  OS thread ids (see AttachOSThread) and synthetic thread
// ids (see Process.NewThread) never collide.
type ThreadId uint64

const (
	firstSyntheticThreadId = ThreadId(1) << 40
)

// A thread's materialized copy of a module's TLS template.
type Block struct {
	Thread ThreadId
	Module linker.ModuleId

	Address uint64
	Bytes   []byte
}

// Per thread storage.  The mutex only guards the thread's own block map; it
// is contended only if the same thread identity is used from multiple
// goroutines.
type threadStorage struct {
	mutex  sync.Mutex
	blocks map[linker.ModuleId]*Block
}

// Registry maps (thread, module) to the thread's storage block for the
// module.  Blocks are materialized lazily on the thread's first access to the
// module's thread-local data, by copying the module's TLS template.
type Registry struct {
	templates map[linker.ModuleId]*linker.TLSTemplate
	space     *addressSpace

	threads sync.Map // ThreadId -> *threadStorage

	materialized atomic.Int64
}

func NewRegistry(directory map[linker.ModuleId]*linker.TLSTemplate) *Registry {
	templates := make(map[linker.ModuleId]*linker.TLSTemplate, len(directory))
	for id, template := range directory {
		bytes := make([]byte, len(template.Bytes))
		copy(bytes, template.Bytes)

		copied := *template
		copied.Bytes = bytes
		templates[id] = &copied
	}

	return &Registry{
		templates: templates,
		space:     globalAddressSpace,
	}
}

func (registry *Registry) storage(thread ThreadId) *threadStorage {
	value, ok := registry.threads.Load(thread)
	if ok {
		return value.(*threadStorage)
	}

	value, _ = registry.threads.LoadOrStore(
		thread,
		&threadStorage{
			blocks: map[linker.ModuleId]*Block{},
		})
	return value.(*threadStorage)
}

// Returns size bytes at offset of the thread's storage block for the module,
// materializing the block on first access.
func (registry *Registry) Access(
	thread ThreadId,
	module linker.ModuleId,
	offset int,
	size int,
) (
	Location,
	error,
) {
	template, ok := registry.templates[module]
	if !ok {
		return Location{}, fmt.Errorf("%w: module %d", ErrNoTLSTemplate, module)
	}

	if offset < 0 || size < 0 || offset+size > template.Size {
		return Location{}, fmt.Errorf(
			"%w: module %d offset %d size %d (template size %d)",
			ErrTLSOutOfBounds,
			module,
			offset,
			size,
			template.Size)
	}

	block := registry.materialize(thread, template)
	return Location{
		Address: block.Address + uint64(offset),
		Bytes:   block.Bytes[offset : offset+size : offset+size],
	}, nil
}

func (registry *Registry) materialize(
	thread ThreadId,
	template *linker.TLSTemplate,
) *Block {
	storage := registry.storage(thread)

	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	block, ok := storage.blocks[template.Module]
	if ok {
		return block
	}

	bytes := make([]byte, template.Size)
	copy(bytes, template.Bytes)

	address := registry.space.reserve(
		uint64(template.Size),
		uint64(template.Alignment))

	block = &Block{
		Thread:  thread,
		Module:  template.Module,
		Address: address,
		Bytes:   bytes,
	}
	storage.blocks[template.Module] = block
	registry.materialized.Add(1)

	return block
}

// Returns the thread's block for the module, if it has been materialized.
func (registry *Registry) Block(
	thread ThreadId,
	module linker.ModuleId,
) (
	*Block,
	bool,
) {
	value, ok := registry.threads.Load(thread)
	if !ok {
		return nil, false
	}

	storage := value.(*threadStorage)
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	block, ok := storage.blocks[module]
	return block, ok
}

// Drops all of the thread's blocks.  A later access by the same thread
// identity (e.g., a reused OS thread id) materializes fresh blocks.
func (registry *Registry) Release(thread ThreadId) {
	registry.threads.Delete(thread)
}

// Total number of blocks materialized over the registry's lifetime.
func (registry *Registry) Materialized() int64 {
	return registry.materialized.Load()
}
