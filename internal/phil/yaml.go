package phil

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a YAML mapping into a Scope, keeping key order.
func FromYAML(data []byte) (*Scope, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	return FromNode(&doc)
}

// FromNode converts a decoded YAML node. Nested mappings become blocks,
// sequences of scalars become space separated values and sequences of
// mappings become repeated blocks. Scalars are single words and are quoted
// when rendered if PHIL would otherwise split or cut them.
func FromNode(node *yaml.Node) (*Scope, error) {
	scope := New()
	if node == nil {
		return scope, nil
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return scope, nil
		}
		node = node.Content[0]
	}
	switch node.Kind {
	case 0:
		return scope, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return scope, nil
		}
	case yaml.MappingNode:
		if err := scope.addMapping(node); err != nil {
			return nil, err
		}
		return scope, nil
	}
	return nil, fmt.Errorf("scope must be a mapping (line %d)", node.Line)
}

func (s *Scope) addMapping(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		name := strings.TrimSpace(key.Value)
		if err := checkName(name); err != nil {
			return fmt.Errorf("%w: %q (line %d)", err, key.Value, key.Line)
		}
		if err := s.addValue(name, val); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) addValue(name string, val *yaml.Node) error {
	switch val.Kind {
	case yaml.MappingNode:
		return s.appendBlock(name).addMapping(val)
	case yaml.SequenceNode:
		if len(val.Content) > 0 && val.Content[0].Kind == yaml.MappingNode {
			for _, item := range val.Content {
				if item.Kind != yaml.MappingNode {
					return fmt.Errorf("%s: mixed sequence (line %d)", name, item.Line)
				}
				if err := s.appendBlock(name).addMapping(item); err != nil {
					return err
				}
			}
			return nil
		}
		words := make([]string, 0, len(val.Content))
		for _, item := range val.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("%s: mixed sequence (line %d)", name, item.Line)
			}
			words = append(words, Quote(scalarValue(item)))
		}
		s.entries = append(s.entries, &entry{name: name, value: strings.Join(words, " "), literal: true})
		return nil
	case yaml.ScalarNode:
		s.entries = append(s.entries, &entry{name: name, value: scalarValue(val)})
		return nil
	case yaml.AliasNode:
		if val.Alias == nil {
			return fmt.Errorf("%s: dangling alias (line %d)", name, val.Line)
		}
		return s.addValue(name, val.Alias)
	default:
		return fmt.Errorf("%s: unsupported value (line %d)", name, val.Line)
	}
}

// scalarValue spells YAML booleans and nulls the way PHIL does.
func scalarValue(node *yaml.Node) string {
	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err == nil {
			if b {
				return "True"
			}
			return "False"
		}
	case "!!null":
		return "None"
	}
	return node.Value
}
