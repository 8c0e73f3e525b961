// Package region implements the Region container: a named node that owns
// a RegionImpl plugin, a set of Input/Output ports, and its phase
// membership (§4.2).
package region

import (
	"fmt"
	"sort"
	"time"

	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/factory"
	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/ports"
	"github.com/chhenning/flowengine/regionspec"
	"github.com/go-logr/logr"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
)

// HookPosComputeStart marks the moment a profiled Region.Compute begins
// delegating to its impl.
var HookPosComputeStart = &sim.HookPos{Name: "Region Compute Start"}

// HookPosComputeEnd marks the moment a profiled Region.Compute returns
// from its impl; the hook's Item is the elapsed time.Duration.
var HookPosComputeEnd = &sim.HookPos{Name: "Region Compute End"}

// Region is a named node in the dataflow graph.
type Region struct {
	sim.HookableBase

	name     string
	nodeType string
	spec     *regionspec.RegionSpec
	impl     factory.RegionImpl
	registry *factory.Registry

	inputs  map[string]*ports.Input
	outputs map[string]*ports.Output

	phases map[uint32]struct{}

	initialized      bool
	ProfilingEnabled bool

	log logr.Logger
}

// NewFromParams constructs a Region by resolving nodeType's spec via reg
// and building a fresh impl from paramString (§4.2 "Construction from
// params"). Ports are created empty; sizing happens later via InitOutputs
// / InitInputs.
func NewFromParams(name, nodeType, paramString string, reg *factory.Registry, log logr.Logger) (*Region, error) {
	spec, err := reg.GetSpec(nodeType)
	if err != nil {
		return nil, err
	}
	r := newShell(name, nodeType, spec, reg, log)

	impl, err := reg.CreateRegionImpl(nodeType, paramString, r)
	if err != nil {
		return nil, err
	}
	r.impl = impl
	return r, nil
}

// NewFromSerialized constructs a Region the same way, but the impl is
// built by the factory's deserializing constructor, which restores the
// impl's internal state (§4.2 "Construction from serialized bundle").
// Output buffer contents are not restored here; the Network restores them
// afterwards via RestoreOutputs. Inputs are left empty; the Network
// reconstructs them after every Region is loaded via PrepareInputs plus
// one link shift (§4.7).
func NewFromSerialized(name, nodeType string, bundle []byte, reg *factory.Registry, log logr.Logger) (*Region, error) {
	spec, err := reg.GetSpec(nodeType)
	if err != nil {
		return nil, err
	}
	r := newShell(name, nodeType, spec, reg, log)

	impl, err := reg.DeserializeRegionImpl(nodeType, bundle, r)
	if err != nil {
		return nil, err
	}
	r.impl = impl
	return r, nil
}

func newShell(name, nodeType string, spec *regionspec.RegionSpec, reg *factory.Registry, log logr.Logger) *Region {
	r := &Region{
		name:     name,
		nodeType: nodeType,
		spec:     spec,
		registry: reg,
		inputs:   map[string]*ports.Input{},
		outputs:  map[string]*ports.Output{},
		phases:   map[uint32]struct{}{},
		log:      log,
	}
	for _, os := range spec.Outputs {
		r.outputs[os.Name] = ports.NewOutput(name, os.Name, os.ElementType)
	}
	for _, is := range spec.Inputs {
		in := ports.NewInput(name, is.Name, is.ElementType, is.Required)
		in.RegionInitialized = func() bool { return r.initialized }
		r.inputs[is.Name] = in
	}
	return r
}

// Name returns the region's name (factory.RegionHandle).
func (r *Region) Name() string { return r.name }

// NodeType returns the region's nodeType string.
func (r *Region) NodeType() string { return r.nodeType }

// Spec returns the region's cached RegionSpec.
func (r *Region) Spec() *regionspec.RegionSpec { return r.spec }

// Impl returns the underlying RegionImpl plugin.
func (r *Region) Impl() factory.RegionImpl { return r.impl }

// Output returns the named output port (factory.RegionHandle).
func (r *Region) Output(name string) (*ports.Output, bool) {
	o, ok := r.outputs[name]
	return o, ok
}

// Input returns the named input port (factory.RegionHandle).
func (r *Region) Input(name string) (*ports.Input, bool) {
	i, ok := r.inputs[name]
	return i, ok
}

// OutputNames returns output port names in spec order.
func (r *Region) OutputNames() []string {
	out := make([]string, len(r.spec.Outputs))
	for i, o := range r.spec.Outputs {
		out[i] = o.Name
	}
	return out
}

// InputNames returns input port names in spec order.
func (r *Region) InputNames() []string {
	out := make([]string, len(r.spec.Inputs))
	for i, in := range r.spec.Inputs {
		out[i] = in.Name
	}
	return out
}

// InitOutputs sizes every Output's Array: spec.Count when non-zero,
// otherwise asks the impl via GetNodeOutputElementCount (§4.2
// "initOutputs").
func (r *Region) InitOutputs() error {
	for _, os := range r.spec.Outputs {
		count := os.Count
		if count == 0 {
			n, err := r.impl.GetNodeOutputElementCount(os.Name)
			if err != nil {
				return fmt.Errorf("region %q: output %q: %w", r.name, os.Name, err)
			}
			count = n
		}
		r.outputs[os.Name].Array.Resize(count)
	}
	return nil
}

// InitInputs sizes every Input's Array to the sum of its incoming links'
// contributions (§4.2 "initInputs").
func (r *Region) InitInputs() {
	for name, in := range r.inputs {
		n := ports.RequiredInputCount(in.GetLinks())
		in.Array.Resize(n)
		_ = name
	}
}

// Initialize is idempotent; it requires InitOutputs/InitInputs to have
// already run (§4.2 "initialize()").
func (r *Region) Initialize() error {
	if r.initialized {
		return nil
	}
	if err := r.impl.Initialize(); err != nil {
		return fmt.Errorf("region %q: %w", r.name, err)
	}
	r.initialized = true
	r.log.V(1).Info("region initialized", "name", r.name, "nodeType", r.nodeType)
	return nil
}

// Initialized reports whether Initialize has completed.
func (r *Region) Initialized() bool { return r.initialized }

// Uninitialize sets initialized to false; it does not touch ports
// (§4.2 "uninitialize()").
func (r *Region) Uninitialize() {
	r.initialized = false
}

// PrepareInputs copies the head of every incoming Link into the
// corresponding Input's Array (§4.3's prepareInputs, scoped to every
// Input this Region owns).
func (r *Region) PrepareInputs() {
	for _, name := range r.InputNames() {
		r.inputs[name].PrepareInputs()
	}
}

// Compute delegates to the impl, bracketed by a profiling timer when
// ProfilingEnabled is set (§4.2 "compute()"). Fails flowerr.ErrNotInitialized
// if the region has not been initialized.
func (r *Region) Compute() error {
	if !r.initialized {
		return fmt.Errorf("region %q: %w", r.name, flowerr.ErrNotInitialized)
	}

	if !r.ProfilingEnabled {
		return r.impl.Compute()
	}

	span := xid.New()
	start := time.Now()
	r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosComputeStart, Item: span})
	err := r.impl.Compute()
	elapsed := time.Since(start)
	r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosComputeEnd, Item: elapsed})
	if err != nil {
		return fmt.Errorf("region %q: %w", r.name, err)
	}
	return nil
}

// ExecuteCommand delegates to the impl. Fails flowerr.ErrEmptyCommand if
// args is empty. When profiling is enabled, the elapsed time is reported
// through a HookPosComputeEnd hook; no start hook is fired.
func (r *Region) ExecuteCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("region %q: %w", r.name, flowerr.ErrEmptyCommand)
	}
	if !r.ProfilingEnabled {
		return r.impl.ExecuteCommand(args)
	}
	start := time.Now()
	out, err := r.impl.ExecuteCommand(args)
	r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosComputeEnd, Item: time.Since(start)})
	return out, err
}

// HasOutgoingLinks is true iff any Output's outbound-link set is
// non-empty.
func (r *Region) HasOutgoingLinks() bool {
	for _, name := range r.OutputNames() {
		if r.outputs[name].HasOutgoingLinks() {
			return true
		}
	}
	return false
}

// RemoveAllIncomingLinks removes every Link feeding every Input of this
// Region.
func (r *Region) RemoveAllIncomingLinks() error {
	for _, name := range r.InputNames() {
		in := r.inputs[name]
		for _, l := range in.GetLinks() {
			if err := in.RemoveLink(l); err != nil {
				return fmt.Errorf("region %q: input %q: %w", r.name, name, err)
			}
		}
	}
	return nil
}

// SetPhases replaces the region's phase membership. Network is the sole
// caller; it is responsible for the phaseInfo-table bookkeeping described
// in §4.5 — this just stores the set this Region belongs to.
func (r *Region) SetPhases(phases map[uint32]struct{}) {
	r.phases = phases
}

// Phases returns the sorted phase numbers this region belongs to.
func (r *Region) Phases() []uint32 {
	out := make([]uint32, 0, len(r.phases))
	for p := range r.phases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// --- typed parameter accessors, with RegionSpec-declared defaults ------

func (r *Region) paramSpec(name string) *regionspec.ParamSpec {
	return r.spec.ParamSpecByName(name)
}

// GetParameterFloat64 returns a scalar float64 parameter, falling back to
// the spec's declared default if the impl reports the key unset.
func (r *Region) GetParameterFloat64(name string) (float64, error) {
	v, err := r.impl.GetParameterFloat64(name)
	if err == nil {
		return v, nil
	}
	if ps := r.paramSpec(name); ps != nil && ps.Default != "" {
		var f float64
		if _, serr := fmt.Sscanf(ps.Default, "%g", &f); serr == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("region %q: %w", r.name, err)
}

// SetParameterFloat64 sets a scalar float64 parameter.
func (r *Region) SetParameterFloat64(name string, v float64) error {
	return r.impl.SetParameterFloat64(name, v)
}

// GetParameterInt64 returns a scalar int64 parameter.
func (r *Region) GetParameterInt64(name string) (int64, error) {
	return r.impl.GetParameterInt64(name)
}

// SetParameterInt64 sets a scalar int64 parameter.
func (r *Region) SetParameterInt64(name string, v int64) error {
	return r.impl.SetParameterInt64(name, v)
}

// GetParameterBool returns a scalar bool parameter.
func (r *Region) GetParameterBool(name string) (bool, error) {
	return r.impl.GetParameterBool(name)
}

// SetParameterBool sets a scalar bool parameter.
func (r *Region) SetParameterBool(name string, v bool) error {
	return r.impl.SetParameterBool(name, v)
}

// GetParameterString returns a scalar string parameter.
func (r *Region) GetParameterString(name string) (string, error) {
	return r.impl.GetParameterString(name)
}

// SetParameterString sets a scalar string parameter.
func (r *Region) SetParameterString(name string, v string) error {
	return r.impl.SetParameterString(name, v)
}

// GetParameterFloat64Array returns an array-typed parameter.
func (r *Region) GetParameterFloat64Array(name string) ([]float64, error) {
	return r.impl.GetParameterFloat64Array(name)
}

// SetParameterFloat64Array sets an array-typed parameter.
func (r *Region) SetParameterFloat64Array(name string, v []float64) error {
	return r.impl.SetParameterFloat64Array(name, v)
}

// Serialize appends this region's opaque impl bundle and every Output
// buffer's raw contents (restored on the other end by the factory's
// deserializing constructor plus Region's own output-array restore).
func (r *Region) Serialize() ([]byte, map[string]*array.Array, error) {
	bundle, err := r.impl.Serialize(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("region %q: %w", r.name, err)
	}
	outs := make(map[string]*array.Array, len(r.outputs))
	for name, o := range r.outputs {
		outs[name] = o.Array
	}
	return bundle, outs, nil
}

// RestoreOutputs overwrites this region's output arrays with persisted
// contents, keyed by output name. Called right after
// NewFromSerialized, before InitInputs/Initialize.
func (r *Region) RestoreOutputs(outs map[string]*array.Array) {
	for name, a := range outs {
		if o, ok := r.outputs[name]; ok {
			o.Array = a
		}
	}
}
