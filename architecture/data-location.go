package architecture

import (
	"fmt"
)

type SegmentKind string

const (
	CodeSegment = SegmentKind("code")

	// Process-wide data.  There is exactly one instance per loaded image.
	NormalSegment = SegmentKind("normal")

	// Thread-local data template.  The template is never accessed directly;
	// it is copied into each thread's storage block on first access.
	ThreadLocalSegment = SegmentKind("thread-local")
)

type DataLocation struct {
	Name string

	Segment SegmentKind

	Size      int
	Alignment int

	// Nil means zero-filled.
	Initializer []byte

	// Relative to the beginning of the segment.  Assigned by SegmentLayout.Add
	Offset int
}

func NewDataLocation(
	name string,
	segment SegmentKind,
	size int,
	alignment int,
	initializer []byte,
) *DataLocation {
	if alignment == 0 {
		alignment = 1
	}

	return &DataLocation{
		Name:        name,
		Segment:     segment,
		Size:        size,
		Alignment:   alignment,
		Initializer: initializer,
		Offset:      -1,
	}
}

func (loc *DataLocation) Copy() *DataLocation {
	var initializer []byte
	if loc.Initializer != nil {
		initializer = make([]byte, len(loc.Initializer))
		copy(initializer, loc.Initializer)
	}

	return &DataLocation{
		Name:        loc.Name,
		Segment:     loc.Segment,
		Size:        loc.Size,
		Alignment:   loc.Alignment,
		Initializer: initializer,
		Offset:      loc.Offset,
	}
}

func (loc *DataLocation) End() int {
	return loc.Offset + loc.Size
}

func (loc *DataLocation) String() string {
	return fmt.Sprintf(
		"Name: %s Segment: %s Size: %d Alignment: %d Offset: %d",
		loc.Name,
		loc.Segment,
		loc.Size,
		loc.Alignment,
		loc.Offset)
}
