package object

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

func SymbolsString(module *Module, indent string) string {
	buffer := &bytes.Buffer{}
	_ = PrintSymbols(buffer, module, indent)
	return buffer.String()
}

func PrintSymbols(output io.Writer, module *Module, indent string) error {
	printer := &symbolPrinter{
		indent: indent,
		writer: output,
	}
	printer.print(module)
	return printer.err
}

type symbolPrinter struct {
	indent string
	writer io.Writer
	err    error
}

func (printer *symbolPrinter) write(format string, args ...interface{}) {
	if printer.err != nil {
		return
	}

	if len(args) == 0 {
		_, printer.err = printer.writer.Write([]byte(format))
	} else {
		_, printer.err = fmt.Fprintf(printer.writer, format, args...)
	}
}

func (printer *symbolPrinter) print(module *Module) {
	printer.write("Module %s:\n", module.Name())
	printer.write(
		"%sCode: %s  Relocations: %d\n",
		printer.indent,
		humanize.IBytes(uint64(module.CodeSize())),
		len(module.relocations))
	printer.write(
		"%sNormal segment: %s (align %d)\n",
		printer.indent,
		humanize.IBytes(uint64(len(module.normalSegment))),
		module.NormalAlignment())
	printer.write(
		"%sTLS template: %s (align %d)\n",
		printer.indent,
		humanize.IBytes(uint64(len(module.tlsTemplate))),
		module.TLSAlignment())

	printer.write("%sSymbols:\n", printer.indent)
	for _, sym := range module.symbols {
		printer.write(
			"%s%s[%d] %s %s %s",
			printer.indent,
			printer.indent,
			sym.Id,
			sym.Visibility,
			sym.Class,
			sym.Name)
		if sym.IsDefined() {
			printer.write(
				" size=%d align=%d offset=%d",
				sym.Size,
				sym.Alignment,
				sym.Offset)
		}
		printer.write("\n")
	}

	if len(module.relocations) == 0 {
		return
	}

	printer.write("%sRelocations:\n", printer.indent)
	for _, reloc := range module.relocations {
		printer.write(
			"%s%s0x%04x %-6s %s (%s)\n",
			printer.indent,
			printer.indent,
			reloc.Offset,
			reloc.Kind,
			reloc.Symbol,
			reloc.State)
	}
}
