package object

import (
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// Records a code site (relative to the beginning of the module's code) that
// references symbolName.  No resolution happens here; the linker resolves
// every recorded relocation exactly once.
func (builder *Builder) RecordReference(
	siteOffset int,
	symbolName string,
	kind platform.RelocationKind,
) error {
	err := builder.check()
	if err != nil {
		return err
	}

	invalid := func(reason string) error {
		return builder.fail(&InvalidRelocationError{
			Module: builder.name,
			Symbol: symbolName,
			Offset: siteOffset,
			Reason: reason,
		})
	}

	if symbolName == "" {
		return invalid("empty symbol name")
	}
	if !kind.IsValid() {
		return invalid("unknown relocation kind " + string(kind))
	}
	if siteOffset < 0 || siteOffset+kind.Width() > len(builder.code) {
		return invalid("site outside of code")
	}

	builder.relocations = append(
		builder.relocations,
		Relocation{
			Relocation: platform.Relocation{
				Kind:   kind,
				Offset: siteOffset,
				Symbol: symbolName,
			},
			State: Recorded,
		})
	return nil
}
