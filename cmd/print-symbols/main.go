package main

import (
	"fmt"
	"os"

	"github.com/hemashushu/xiaoxuan-assembly/manifest"
	"github.com/hemashushu/xiaoxuan-assembly/object"
)

func main() {
	for _, fileName := range os.Args[1:] {
		fmt.Println("=====================")
		fmt.Println("File name:", fileName)
		fmt.Println("---------------------")

		spec, err := manifest.ReadFile(fileName)
		if err != nil {
			fmt.Println("ReadFile error:", err)
			continue
		}

		for _, moduleSpec := range spec.Modules {
			module, err := moduleSpec.Build(spec.Options.Limits)
			if err != nil {
				fmt.Println("Build error:", err)
				continue
			}

			fmt.Println(object.SymbolsString(module, "  "))
		}
	}
}
