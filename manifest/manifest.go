package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/pattyshack/gt/parseutil"
	"gopkg.in/yaml.v3"

	"github.com/hemashushu/xiaoxuan-assembly/linker"
	"github.com/hemashushu/xiaoxuan-assembly/object"
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

// Manifest describes a set of modules (and the options used to link them) in
// yaml.
type Manifest struct {
	Options linker.Config `yaml:"options"`
	Modules []*ModuleSpec `yaml:"modules"`
}

type ModuleSpec struct {
	Name      string          `yaml:"name"`
	Imports   []*ImportSpec   `yaml:"imports"`
	Data      []*DataSpec     `yaml:"data"`
	Functions []*FunctionSpec `yaml:"functions"`

	Location parseutil.Location `yaml:"-"`
}

type ImportSpec struct {
	Name  string              `yaml:"name"`
	Class object.StorageClass `yaml:"class"`

	Location parseutil.Location `yaml:"-"`
}

type DataSpec struct {
	Name       string              `yaml:"name"`
	Class      object.StorageClass `yaml:"class"`
	Visibility object.Visibility   `yaml:"visibility"`

	// Defaults to the initializer's length.
	Size      int `yaml:"size"`
	Alignment int `yaml:"alignment"`

	// Initializer bytes.
	Init []int `yaml:"init"`

	// Little endian 32-bit initializer.  Mutually exclusive with Init.
	Value *int32 `yaml:"value"`

	Location parseutil.Location `yaml:"-"`
}

type FunctionSpec struct {
	Name       string            `yaml:"name"`
	Visibility object.Visibility `yaml:"visibility"`
	Code       []*Instruction    `yaml:"code"`

	Location parseutil.Location `yaml:"-"`
}

type Instruction struct {
	Op     string `yaml:"op"`
	Symbol string `yaml:"symbol"`
	Value  int32  `yaml:"value"`
	Index  uint8  `yaml:"index"`
	Argc   uint8  `yaml:"argc"`

	Location parseutil.Location `yaml:"-"`
}

func Parse(fileName string, content []byte) (*Manifest, error) {
	manifest := &Manifest{
		Options: linker.DefaultConfig(),
	}

	err := yaml.Unmarshal(content, manifest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	manifest.setFileName(fileName)
	return manifest, nil
}

func ReadFile(fileName string) (*Manifest, error) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	return Parse(fileName, content)
}

// Reads and merges manifests.  Options are taken from the first manifest;
// modules are concatenated in order.
func ReadFiles(fileNames ...string) (*Manifest, error) {
	if len(fileNames) == 0 {
		return nil, errors.New("no manifest files")
	}

	var merged *Manifest
	for _, fileName := range fileNames {
		manifest, err := ReadFile(fileName)
		if err != nil {
			return nil, err
		}

		if merged == nil {
			merged = manifest
		} else {
			merged.Modules = append(merged.Modules, manifest.Modules...)
		}
	}

	return merged, nil
}

func (manifest *Manifest) Config() linker.Config {
	return manifest.Options
}

func (manifest *Manifest) setFileName(fileName string) {
	for _, module := range manifest.Modules {
		module.Location.FileName = fileName
		for _, imp := range module.Imports {
			imp.Location.FileName = fileName
		}
		for _, data := range module.Data {
			data.Location.FileName = fileName
		}
		for _, function := range module.Functions {
			function.Location.FileName = fileName
			for _, inst := range function.Code {
				inst.Location.FileName = fileName
			}
		}
	}
}

// Builds every module.  A module's first error aborts that module's build;
// the remaining modules are still built so that all errors are reported.
func (manifest *Manifest) Build() ([]*object.Module, error) {
	modules := []*object.Module{}
	errs := []error{}
	for _, spec := range manifest.Modules {
		module, err := spec.Build(manifest.Options.Limits)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		modules = append(modules, module)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return modules, nil
}

// Builds and links every module.
func (manifest *Manifest) Link(
	targetPlatform platform.Platform,
) (
	*linker.Image,
	error,
) {
	modules, err := manifest.Build()
	if err != nil {
		return nil, err
	}

	return linker.Link(modules, targetPlatform, manifest.Options)
}
