package manifest

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"escore/pkg/errors"
	"escore/pkg/source"
	"escore/pkg/value"
)

// Document is a compiled unit in manifest form: the import and export
// entries and declarations a compiler would have produced, and a body of
// simple statements.
type Document struct {
	Strict       bool         `yaml:"strict"`
	Imports      []ImportSpec `yaml:"imports"`
	Exports      []ExportSpec `yaml:"exports"`
	Declarations []DeclSpec   `yaml:"declarations"`
	Body         []Statement  `yaml:"body"`
}

// ImportSpec is one import declaration. With neither Names nor Namespace
// it only requests the module.
type ImportSpec struct {
	From      string   `yaml:"from"`
	Names     nameList `yaml:"names"`
	Namespace string   `yaml:"namespace"`
}

// ExportSpec is one export declaration:
//
//	{local: y}                    export {y}
//	{local: y, as: z}             export {y as z}
//	{from: m, name: a, as: b}     export {a as b} from "m"
//	{from: m, star: true}         export * from "m"
//	{from: m, star: true, as: n}  export * as n from "m"
//	{default: 42}                 export default 42
type ExportSpec struct {
	Local   string     `yaml:"local"`
	As      string     `yaml:"as"`
	From    string     `yaml:"from"`
	Name    string     `yaml:"name"`
	Star    bool       `yaml:"star"`
	Default *yaml.Node `yaml:"default"`
}

// DeclSpec is a hoisted declaration. Function declarations carry their own
// parameters, declarations and body.
type DeclSpec struct {
	Name         string      `yaml:"name"`
	Kind         string      `yaml:"kind"`
	Params       []string    `yaml:"params"`
	Arrow        bool        `yaml:"arrow"`
	Declarations []DeclSpec  `yaml:"declarations"`
	Body         []Statement `yaml:"body"`
}

// nameList is an ordered imported → local mapping. A sequence of names
// imports each under its own name.
type nameList []namePair

type namePair struct {
	Imported string
	Local    string
}

func (l *nameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		items := make(nameList, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			var imported, local string
			if err := node.Content[i].Decode(&imported); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&local); err != nil {
				return err
			}
			items = append(items, namePair{Imported: imported, Local: local})
		}
		*l = items
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		items := make(nameList, len(names))
		for i, n := range names {
			items[i] = namePair{Imported: n, Local: n}
		}
		*l = items
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return errors.Errorf("line %d: names must be a mapping or a sequence", node.Line)
		}
		*l = nil
	}
	return nil
}

// Op names a statement kind.
type Op string

const (
	OpLog    Op = "log"    // append text to the log
	OpInit   Op = "init"   // initialize a declared binding
	OpAssign Op = "assign" // assign through an identifier reference
	OpRead   Op = "read"   // log a binding's value or the kind of error reading it raises
	OpCall   Op = "call"   // call a function binding
	OpThrow  Op = "throw"  // throw a value
	OpEval   Op = "eval"   // direct eval of manifest text
)

// Statement is one body statement: a single-key mapping whose key is the Op.
type Statement struct {
	Op    Op
	Name  string
	Text  string
	Value value.Value
	Line  int
	Col   int
}

type bindingSpec struct {
	Name  string    `yaml:"name"`
	Value yaml.Node `yaml:"value"`
}

func (s *Statement) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return errors.Errorf("line %d: a statement is a mapping with exactly one key", node.Line)
	}
	key, arg := node.Content[0], node.Content[1]
	s.Op = Op(key.Value)
	s.Line, s.Col = key.Line, key.Column

	var err error
	switch s.Op {
	case OpLog, OpEval:
		err = arg.Decode(&s.Text)
	case OpRead, OpCall:
		err = arg.Decode(&s.Name)
	case OpInit, OpAssign:
		var b bindingSpec
		if err = arg.Decode(&b); err == nil {
			s.Name = b.Name
			s.Value, err = literal(&b.Value)
		}
	case OpThrow:
		s.Value, err = literal(arg)
	default:
		return errors.Errorf("line %d: unknown statement %q", key.Line, key.Value)
	}
	if err != nil {
		return errors.Errorf("line %d: %s: %v", key.Line, s.Op, err)
	}
	return nil
}

// literal converts a YAML scalar to a primitive value. An absent node is
// undefined.
func literal(node *yaml.Node) (value.Value, error) {
	if node == nil || node.Kind == 0 {
		return value.Undefined, nil
	}
	if node.Kind != yaml.ScalarNode {
		return value.Undefined, errors.Errorf("line %d: only scalar values are supported", node.Line)
	}
	switch node.Tag {
	case "!!null":
		return value.Null, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return value.Undefined, err
		}
		return value.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return value.Undefined, err
		}
		return value.Number(f), nil
	default:
		return value.String(node.Value), nil
	}
}

// Parse decodes a manifest document. Unknown fields are rejected.
func Parse(src *source.SourceFile) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(strings.NewReader(src.Content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.NewSyntaxError("invalid manifest %s: %v", src.DisplayPath(), err)
	}
	return &doc, nil
}
