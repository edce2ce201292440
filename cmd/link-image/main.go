package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hemashushu/xiaoxuan-assembly/linker"
	"github.com/hemashushu/xiaoxuan-assembly/loader"
	"github.com/hemashushu/xiaoxuan-assembly/manifest"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
	"github.com/hemashushu/xiaoxuan-assembly/platform/vm"
)

func parseArgs(value string) ([]int32, error) {
	args := []int32{}
	if value == "" {
		return args, nil
	}

	for _, field := range strings.Split(value, ",") {
		arg, err := strconv.ParseInt(strings.TrimSpace(field), 0, 32)
		if err != nil {
			return nil, err
		}
		args = append(args, int32(arg))
	}
	return args, nil
}

func printErrors(err error) {
	errs := []error{err}
	joined, ok := err.(interface{ Unwrap() []error })
	if ok {
		errs = joined.Unwrap()
	}

	fmt.Println("---------------------------")
	fmt.Println("Found", len(errs), "errors:")
	fmt.Println("---------------------------")
	for idx, err := range errs {
		fmt.Printf("error %d: %s\n", idx, err)
	}
}

func run(image *linker.Image, call string, args []int32, threads int) error {
	process, err := loader.Load(image)
	if err != nil {
		return err
	}

	fmt.Println("---------------------")
	fmt.Printf("Process %s (base 0x%x)\n", process.Id, process.Base)

	results := make([]int32, threads)
	group := &errgroup.Group{}
	for idx := 0; idx < threads; idx++ {
		idx := idx
		group.Go(func() error {
			thread := process.NewThread()
			defer thread.Exit()

			result, err := thread.Call(call, args...)
			if err != nil {
				return fmt.Errorf("thread %d: %w", thread.Id, err)
			}
			results[idx] = result
			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return err
	}

	for idx, result := range results {
		fmt.Printf("thread %d: %s(%v) = %d\n", idx, call, args, result)
	}
	return nil
}

func main() {
	call := flag.String("call", "", "exported function to call after linking")
	callArgs := flag.String("args", "", "comma separated int32 arguments")
	threads := flag.Int("threads", 1, "number of threads calling the function")
	flag.Parse()

	args, err := parseArgs(*callArgs)
	if err != nil {
		fmt.Println("Invalid args:", err)
		os.Exit(2)
	}

	fmt.Println("=====================")
	fmt.Println("Manifests:", strings.Join(flag.Args(), " "))
	fmt.Println("---------------------")

	spec, err := manifest.ReadFiles(flag.Args()...)
	if err != nil {
		fmt.Println("ReadFile error:", err)
		os.Exit(1)
	}

	image, err := spec.Link(vm.NewPlatform(platform.Linux))
	if err != nil {
		printErrors(err)
		os.Exit(1)
	}

	fmt.Println(linker.ImageString(image, "  "))

	if *call == "" {
		return
	}

	err = run(image, *call, args, *threads)
	if err != nil {
		fmt.Println("Run error:", err)
		os.Exit(1)
	}
}
