package object

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"
)

func locationPrefix(loc parseutil.Location) string {
	if loc == (parseutil.Location{}) {
		return ""
	}
	return fmt.Sprintf("%s: ", loc)
}

// Two symbols with the same name in one module.
type DuplicateSymbolError struct {
	Module   string
	Name     string
	Location parseutil.Location
	Previous parseutil.Location
}

func (err *DuplicateSymbolError) Error() string {
	return fmt.Sprintf(
		"%smodule (%s): symbol (%s) previously declared",
		locationPrefix(err.Location),
		err.Module,
		err.Name)
}

// The requested alignment is invalid, or cannot be satisfied within the
// segment size limit.
type AlignmentOverflowError struct {
	Module    string
	Name      string
	Alignment int
	Limit     int
	Location  parseutil.Location
}

func (err *AlignmentOverflowError) Error() string {
	return fmt.Sprintf(
		"%smodule (%s): symbol (%s) alignment %d cannot be satisfied (limit %d)",
		locationPrefix(err.Location),
		err.Module,
		err.Name,
		err.Alignment,
		err.Limit)
}

type InvalidDeclarationError struct {
	Module   string
	Name     string
	Reason   string
	Location parseutil.Location
}

func (err *InvalidDeclarationError) Error() string {
	return fmt.Sprintf(
		"%smodule (%s): invalid declaration (%s): %s",
		locationPrefix(err.Location),
		err.Module,
		err.Name,
		err.Reason)
}

type InvalidRelocationError struct {
	Module string
	Symbol string
	Offset int
	Reason string
}

func (err *InvalidRelocationError) Error() string {
	return fmt.Sprintf(
		"module (%s): invalid relocation to (%s) at offset %d: %s",
		err.Module,
		err.Symbol,
		err.Offset,
		err.Reason)
}

type InitializerSizeError struct {
	Module   string
	Name     string
	Size     int
	Length   int
	Location parseutil.Location
}

func (err *InitializerSizeError) Error() string {
	return fmt.Sprintf(
		"%smodule (%s): symbol (%s) initializer has %d bytes, exceeds size %d",
		locationPrefix(err.Location),
		err.Module,
		err.Name,
		err.Length,
		err.Size)
}
