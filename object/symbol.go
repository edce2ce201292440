package object

import (
	"github.com/pattyshack/gt/parseutil"
)

type StorageClass string

const (
	// One storage instance per process, shared by all threads.
	Normal = StorageClass("normal")

	// One storage instance per (thread, module) pair.
	ThreadLocal = StorageClass("thread_local")

	// Code entry point.  Never storage allocated.
	Function = StorageClass("function")
)

func (class StorageClass) IsValid() bool {
	switch class {
	case Normal, ThreadLocal, Function:
		return true
	default:
		return false
	}
}

func (class StorageClass) IsData() bool {
	return class == Normal || class == ThreadLocal
}

type Visibility string

const (
	Exported = Visibility("exported")
	Imported = Visibility("imported")
	Local    = Visibility("local")
)

func (visibility Visibility) IsValid() bool {
	switch visibility {
	case Exported, Imported, Local:
		return true
	default:
		return false
	}
}

// Index into the defining module's symbol list.
type SymbolId int

type Symbol struct {
	Id         SymbolId
	Name       string
	Class      StorageClass
	Visibility Visibility

	Size      int
	Alignment int

	// Nil means zero-filled.
	Initializer []byte

	// Normal / ThreadLocal definitions: offset within the module's Normal
	// segment / TLS template.  Function definitions: entry offset within the
	// module's code.  -1 for imported symbols.
	Offset int

	// Declaration site.  Zero for programmatically declared symbols.
	Location parseutil.Location
}

func (sym Symbol) IsDefined() bool {
	return sym.Visibility != Imported
}

func (sym Symbol) copy() Symbol {
	if sym.Initializer != nil {
		initializer := make([]byte, len(sym.Initializer))
		copy(initializer, sym.Initializer)
		sym.Initializer = initializer
	}
	return sym
}
