// Package workflow defines the in-memory model of a compiled distributed
// workflow: locations, ports, datasets, steps and the process-algebra
// expression tree that describes how a location's body composes exec, send
// and recv operations.
package workflow

import "fmt"

// Location is an endpoint that owns a process.
type Location struct {
	Name     string
	Hostname string
	Port     int
	Workdir  string
}

// DataType enumerates the PortValue tags.
type DataType string

const (
	TypeFile   DataType = "file"
	TypeString DataType = "string"
	TypeInt    DataType = "int"
	TypeBool   DataType = "bool"
)

// Data is a workflow-level declaration bound to an initial PortValue at a
// location via a dataset initialization step.
type Data struct {
	Name  string
	Type  DataType
	Value string
}

// PortValue is the tagged union {File(path), String(bytes), Int(i64), Bool(b)}.
// Once constructed it is treated as immutable by every caller in this module.
type PortValue struct {
	Kind DataType
	File string
	Str  string
	Int  int64
	Bool bool
}

// FileValue constructs a File-tagged PortValue.
func FileValue(path string) PortValue { return PortValue{Kind: TypeFile, File: path} }

// StringValue constructs a String-tagged PortValue.
func StringValue(s string) PortValue { return PortValue{Kind: TypeString, Str: s} }

// IntValue constructs an Int-tagged PortValue.
func IntValue(i int64) PortValue { return PortValue{Kind: TypeInt, Int: i} }

// BoolValue constructs a Bool-tagged PortValue.
func BoolValue(b bool) PortValue { return PortValue{Kind: TypeBool, Bool: b} }

// Literal renders the value's canonical string form, used both for argument
// substitution in step command lines and for String/Int/Bool wire payloads.
func (v PortValue) Literal() string {
	switch v.Kind {
	case TypeFile:
		return v.File
	case TypeString:
		return v.Str
	case TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Processor describes how a step output port's value is recovered: the glob
// pattern used to locate the output file inside the step's scratch directory.
type Processor struct {
	Glob string
}

// FlowBinding pairs a port with the data declaration it is bound to.
type FlowBinding struct {
	Port string
	Data string
}

// Arg is one slot of a step's argument template: either a literal string or
// a reference to a port whose resolved value is substituted at exec time.
type Arg struct {
	PortRef string // non-empty when this slot is a port reference
	Literal string
}

// IsPort reports whether this argument slot references a port.
func (a Arg) IsPort() bool { return a.PortRef != "" }

// Step is a shell command with declared input/output ports and an argument
// template.
type Step struct {
	Name        string
	DisplayName string
	Command     string
	Arguments   []Arg
	Processors  map[string]Processor // output port name -> Processor
}
