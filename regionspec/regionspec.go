// Package regionspec holds the declarative description of a Region type:
// its input ports, output ports, and parameters. A Spec is produced once
// per nodeType by that type's CreateSpec and cached by the factory.
package regionspec

import "github.com/chhenning/flowengine/array"

// PortSpec describes one input or output port a Region type exposes.
//
// Count == 0 means "wildcard" — for an output, the actual size is asked
// of the impl at init time (Region.InitOutputs). Input sizes always come
// from their incoming links (Region.InitInputs), whatever Count says.
type PortSpec struct {
	Name        string
	ElementType array.ElementType
	Count       int
	Required    bool

	// RegionLevel marks a port whose data is conceptually per-region
	// rather than per-element (informational; the engine does not act on
	// it beyond carrying it through to documentation/specs).
	RegionLevel bool

	// Default marks the port returned by a zero-value port name lookup
	// in Network.Link. Constructing a RegionSpec rejects more than one
	// default input or more than one default output; a spec with no
	// default input is accepted.
	Default bool
}

// Access describes whether a parameter may be read, written, or both.
type Access int

const (
	AccessReadOnly Access = iota
	AccessReadWrite
	AccessWriteOnly
)

// ParamSpec describes one parameter a Region type accepts.
type ParamSpec struct {
	Name        string
	ElementType array.ElementType
	Count       int // 0 for a scalar parameter, >0 for a fixed-size array parameter
	Constraints string
	Default     string
	Access      Access
}

// RegionSpec is the ordered catalog of input specs, output specs and
// parameter specs for one nodeType. It is immutable once constructed.
type RegionSpec struct {
	NodeType string
	Inputs   []PortSpec
	Outputs  []PortSpec
	Params   []ParamSpec
}

// New validates and returns a RegionSpec. It panics on a malformed
// catalog (more than one default output, an unnamed port, etc.) —
// building an invalid Spec is a programming error in the RegionImpl's
// CreateSpec, not a runtime condition callers recover from.
func New(nodeType string, inputs, outputs []PortSpec, params []ParamSpec) *RegionSpec {
	seen := map[string]bool{}
	defaultOutputs := 0
	for _, p := range outputs {
		if p.Name == "" {
			panic("regionspec: output port with empty name")
		}
		if seen[p.Name] {
			panic("regionspec: duplicate output port name " + p.Name)
		}
		seen[p.Name] = true
		if p.Default {
			defaultOutputs++
		}
	}
	if defaultOutputs > 1 {
		panic("regionspec: more than one default output port")
	}

	seen = map[string]bool{}
	defaultInputs := 0
	for _, p := range inputs {
		if p.Name == "" {
			panic("regionspec: input port with empty name")
		}
		if seen[p.Name] {
			panic("regionspec: duplicate input port name " + p.Name)
		}
		seen[p.Name] = true
		if p.Default {
			defaultInputs++
		}
	}
	if defaultInputs > 1 {
		panic("regionspec: more than one default input port")
	}

	seen = map[string]bool{}
	for _, p := range params {
		if p.Name == "" {
			panic("regionspec: parameter with empty name")
		}
		if seen[p.Name] {
			panic("regionspec: duplicate parameter name " + p.Name)
		}
		seen[p.Name] = true
	}

	return &RegionSpec{NodeType: nodeType, Inputs: inputs, Outputs: outputs, Params: params}
}

// InputSpec returns the named input spec, or nil if absent.
func (s *RegionSpec) InputSpec(name string) *PortSpec {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}

// OutputSpec returns the named output spec, or nil if absent.
func (s *RegionSpec) OutputSpec(name string) *PortSpec {
	for i := range s.Outputs {
		if s.Outputs[i].Name == name {
			return &s.Outputs[i]
		}
	}
	return nil
}

// ParamSpecByName returns the named parameter spec, or nil if absent.
func (s *RegionSpec) ParamSpecByName(name string) *ParamSpec {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i]
		}
	}
	return nil
}

// DefaultInputName returns the name of the input carrying the Default
// flag, or "" if none does.
func (s *RegionSpec) DefaultInputName() string {
	for _, p := range s.Inputs {
		if p.Default {
			return p.Name
		}
	}
	return ""
}

// DefaultOutputName returns the name of the output carrying the Default
// flag, or "" if none does.
func (s *RegionSpec) DefaultOutputName() string {
	for _, p := range s.Outputs {
		if p.Default {
			return p.Name
		}
	}
	return ""
}
