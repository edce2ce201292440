package linker

import (
	"github.com/hemashushu/xiaoxuan-assembly/object"
)

// Index of the module in the Combine input.  Also the module's identity in
// the TLS directory.
type ModuleId int

type TLSTemplate struct {
	Module     ModuleId
	ModuleName string

	Bytes     []byte // never executed against, only copied
	Size      int
	Alignment int
}

// A defined symbol's final placement.
type SymbolAddress struct {
	Module ModuleId
	Name   string
	Class  object.StorageClass
	Size   int

	// Normal / Function: image virtual address.
	// ThreadLocal: offset within the module's TLS template.
	Address uint64
}

type ResolvedRelocation struct {
	Module ModuleId
	object.Relocation

	Site  uint64 // image virtual address of the patched bytes
	Value int64
}

// Image is the fully resolved output of Combine.  Image virtual addresses
// start at CodeAddress; the loader displaces them by a per-process base.  An
// Image is never modified after Combine returns.
type Image struct {
	Modules []string

	CodeAddress uint64
	Code        []byte

	DataAddress   uint64
	DataAlignment int
	Data          []byte // Normal segment initial content

	TLSDirectory map[ModuleId]*TLSTemplate

	// Exported symbols by public name
	Symbols map[string]SymbolAddress

	// Code offsets of abs64 sites, for load-time rebasing
	AbsoluteSites []int

	Relocations []ResolvedRelocation
}

func (image *Image) Lookup(name string) (SymbolAddress, bool) {
	sym, ok := image.Symbols[name]
	return sym, ok
}

// Number of image virtual address bytes spanned, starting at address zero.
func (image *Image) Span() uint64 {
	return image.DataAddress + uint64(len(image.Data))
}

func (image *Image) TLSTemplate(module ModuleId) (*TLSTemplate, bool) {
	template, ok := image.TLSDirectory[module]
	return template, ok
}
