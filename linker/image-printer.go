package linker

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
)

func ImageString(image *Image, indent string) string {
	buffer := &bytes.Buffer{}
	_ = PrintImage(buffer, image, indent)
	return buffer.String()
}

func PrintImage(output io.Writer, image *Image, indent string) error {
	printer := &imagePrinter{
		indent: indent,
		writer: output,
	}
	printer.print(image)
	return printer.err
}

type imagePrinter struct {
	indent string
	writer io.Writer
	err    error
}

func (printer *imagePrinter) write(format string, args ...interface{}) {
	if printer.err != nil {
		return
	}

	if len(args) == 0 {
		_, printer.err = printer.writer.Write([]byte(format))
	} else {
		_, printer.err = fmt.Fprintf(printer.writer, format, args...)
	}
}

func (printer *imagePrinter) print(image *Image) {
	printer.write("Image:\n")
	for idx, name := range image.Modules {
		printer.write("%s[%d] %s\n", printer.indent, idx, name)
	}

	printer.write(
		"Code: 0x%08x %s\n",
		image.CodeAddress,
		humanize.IBytes(uint64(len(image.Code))))
	printer.write(
		"Normal data: 0x%08x %s (align %d)\n",
		image.DataAddress,
		humanize.IBytes(uint64(len(image.Data))),
		image.DataAlignment)

	printer.write("TLS directory:\n")
	ids := make([]int, 0, len(image.TLSDirectory))
	for id := range image.TLSDirectory {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		template := image.TLSDirectory[ModuleId(id)]
		printer.write(
			"%s[%d] %s %s (align %d)\n",
			printer.indent,
			template.Module,
			template.ModuleName,
			humanize.IBytes(uint64(template.Size)),
			template.Alignment)
	}

	printer.write("Symbols:\n")
	names := make([]string, 0, len(image.Symbols))
	for name := range image.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := image.Symbols[name]
		printer.write(
			"%s0x%08x %-12s %s (module %d, size %d)\n",
			printer.indent,
			sym.Address,
			sym.Class,
			name,
			sym.Module,
			sym.Size)
	}

	printer.write("Relocations:\n")
	for _, reloc := range image.Relocations {
		printer.write(
			"%s0x%08x %-6s %s = %d (%s)\n",
			printer.indent,
			reloc.Site,
			reloc.Kind,
			reloc.Symbol,
			reloc.Value,
			reloc.State)
	}
}
