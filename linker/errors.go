package linker

import (
	"fmt"
	"strings"

	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// An import (or relocation target) with no matching export across the
// combined modules.
type UnresolvedSymbolError struct {
	Module string
	Name   string
}

func (err *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf(
		"module (%s): symbol (%s) not defined by any module",
		err.Module,
		err.Name)
}

type SymbolClassMismatchError struct {
	Module   string // importing module
	Name     string
	Expected object.StorageClass
	Found    object.StorageClass
	Exporter string
}

func (err *SymbolClassMismatchError) Error() string {
	return fmt.Sprintf(
		"module (%s): symbol (%s) imported as %s but exported by module (%s) as %s",
		err.Module,
		err.Name,
		err.Expected,
		err.Exporter,
		err.Found)
}

// The same public name exported by more than one module.
type DuplicateExportError struct {
	Name    string
	Modules []string
}

func (err *DuplicateExportError) Error() string {
	return fmt.Sprintf(
		"symbol (%s) exported by multiple modules (%s)",
		err.Name,
		strings.Join(err.Modules, ", "))
}

// The relocation kind cannot be applied to the target's storage class (e.g.,
// an absolute address of a thread-local symbol).
type RelocationClassError struct {
	Module string
	Name   string
	Kind   platform.RelocationKind
	Class  object.StorageClass
}

func (err *RelocationClassError) Error() string {
	return fmt.Sprintf(
		"module (%s): %s relocation cannot reference %s symbol (%s)",
		err.Module,
		err.Kind,
		err.Class,
		err.Name)
}

type DuplicateModuleError struct {
	Name string
}

func (err *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module (%s) linked more than once", err.Name)
}
