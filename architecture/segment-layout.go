package architecture

import (
	"errors"
)

var ErrSegmentOverflow = errors.New("segment size limit exceeded")

// Segment layout from low address to high address:
//
// |              | <- start of segment (aligned to the segment's alignment)
// |entry 1       |
// |--------------|
// |padding       | so that entry 2's offset is a multiple of its alignment
// |--------------|
// |entry 2       |
// |--------------|
// |...           |
// |--------------|
// |entry n       |
// |--------------| <- segment size
//
// Entries are bump allocated in insertion order.  The segment's alignment is
// the maximum alignment of all its entries, so that placing the segment at an
// aligned address keeps every entry aligned.
type SegmentLayout struct {
	Kind SegmentKind

	// All entry name -> location
	Locations map[string]*DataLocation

	// In insertion (= address) order
	Entries []*DataLocation

	MaxSize int

	Size      int
	Alignment int
}

func NewSegmentLayout(kind SegmentKind, maxSize int) *SegmentLayout {
	return &SegmentLayout{
		Kind:      kind,
		Locations: map[string]*DataLocation{},
		MaxSize:   maxSize,
		Alignment: 1,
	}
}

func (layout *SegmentLayout) Add(loc *DataLocation) error {
	_, ok := layout.Locations[loc.Name]
	if ok {
		panic("duplicate data location: " + loc.Name)
	}
	if loc.Segment != layout.Kind {
		panic("data location added to the wrong segment: " + loc.Name)
	}

	offset := AlignUp(layout.Size, loc.Alignment)
	end := offset + loc.Size
	if end > layout.MaxSize || end < offset {
		return ErrSegmentOverflow
	}

	loc.Offset = offset
	layout.Size = end
	if loc.Alignment > layout.Alignment {
		layout.Alignment = loc.Alignment
	}

	layout.Locations[loc.Name] = loc
	layout.Entries = append(layout.Entries, loc)
	return nil
}

// The segment's initial content.  Entries without initializer are zero-filled.
func (layout *SegmentLayout) Bytes() []byte {
	content := make([]byte, layout.Size)
	for _, loc := range layout.Entries {
		copy(content[loc.Offset:loc.End()], loc.Initializer)
	}
	return content
}
