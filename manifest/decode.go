package manifest

import (
	"github.com/pattyshack/gt/parseutil"
	"gopkg.in/yaml.v3"
)

func nodeLocation(node *yaml.Node) parseutil.Location {
	return parseutil.Location{
		Line:   node.Line,
		Column: node.Column,
	}
}

// Rejects mapping keys other than the allowed ones.  Entries decoded through
// a custom unmarshaler do not inherit the outer decoder's strictness.
func checkFields(node *yaml.Node, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		key := node.Content[idx]

		found := false
		for _, name := range allowed {
			if key.Value == name {
				found = true
				break
			}
		}

		if !found {
			return parseutil.NewLocationError(
				nodeLocation(key),
				"unknown field (%s)",
				key.Value)
		}
	}

	return nil
}

func (spec *ModuleSpec) UnmarshalYAML(node *yaml.Node) error {
	err := checkFields(node, "name", "imports", "data", "functions")
	if err != nil {
		return err
	}

	type plain ModuleSpec
	err = node.Decode((*plain)(spec))
	if err != nil {
		return err
	}

	spec.Location = nodeLocation(node)
	return nil
}

func (spec *ImportSpec) UnmarshalYAML(node *yaml.Node) error {
	err := checkFields(node, "name", "class")
	if err != nil {
		return err
	}

	type plain ImportSpec
	err = node.Decode((*plain)(spec))
	if err != nil {
		return err
	}

	spec.Location = nodeLocation(node)
	return nil
}

func (spec *DataSpec) UnmarshalYAML(node *yaml.Node) error {
	err := checkFields(
		node,
		"name",
		"class",
		"visibility",
		"size",
		"alignment",
		"init",
		"value")
	if err != nil {
		return err
	}

	type plain DataSpec
	err = node.Decode((*plain)(spec))
	if err != nil {
		return err
	}

	spec.Location = nodeLocation(node)
	return nil
}

func (spec *FunctionSpec) UnmarshalYAML(node *yaml.Node) error {
	err := checkFields(node, "name", "visibility", "code")
	if err != nil {
		return err
	}

	type plain FunctionSpec
	err = node.Decode((*plain)(spec))
	if err != nil {
		return err
	}

	spec.Location = nodeLocation(node)
	return nil
}

func (inst *Instruction) UnmarshalYAML(node *yaml.Node) error {
	err := checkFields(node, "op", "symbol", "value", "index", "argc")
	if err != nil {
		return err
	}

	type plain Instruction
	err = node.Decode((*plain)(inst))
	if err != nil {
		return err
	}

	inst.Location = nodeLocation(node)
	return nil
}
