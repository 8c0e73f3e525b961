// Package factory implements the process-wide RegionImplFactory: the
// catalog mapping a nodeType string to a Spec and to the constructors
// that build a RegionImpl from fresh parameters or from a serialized
// bundle. It is the engine's sole extension point for plugging in new
// Region kinds — the decoupling seam between the engine and algorithm
// code.
package factory

import (
	"fmt"
	"sync"

	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/ports"
	"github.com/chhenning/flowengine/regionspec"
	"github.com/chhenning/flowengine/valuemap"
)

// RegionHandle is what a RegionImpl constructor receives in place of a
// concrete *region.Region — it exposes exactly what an impl needs to
// retain borrowed references to its owning Region's ports, without
// factory importing the region package (which itself depends on
// factory to build Regions).
type RegionHandle interface {
	// Name returns the owning Region's name.
	Name() string
	// Output returns the named output port, or ok=false if absent.
	Output(name string) (*ports.Output, bool)
	// Input returns the named input port, or ok=false if absent.
	Input(name string) (*ports.Input, bool)
}

// RegionImpl is the plugin contract every Region implementation must
// satisfy (§6 "Region plugin contract").
type RegionImpl interface {
	Initialize() error
	Compute() error
	ExecuteCommand(args []string) (string, error)
	GetNodeOutputElementCount(outputName string) (int, error)

	GetParameterInt64(name string) (int64, error)
	SetParameterInt64(name string, v int64) error
	GetParameterFloat64(name string) (float64, error)
	SetParameterFloat64(name string, v float64) error
	GetParameterBool(name string) (bool, error)
	SetParameterBool(name string, v bool) error
	GetParameterString(name string) (string, error)
	SetParameterString(name string, v string) error
	GetParameterFloat64Array(name string) ([]float64, error)
	SetParameterFloat64Array(name string, v []float64) error

	// Serialize appends this impl's opaque persisted state to bundle and
	// returns the result.
	Serialize(bundle []byte) ([]byte, error)
}

// CreateSpecFunc produces a nodeType's RegionSpec. Called at most once
// per nodeType; the result is memoized by the Registry.
type CreateSpecFunc func() *regionspec.RegionSpec

// CreateFromParamsFunc builds a fresh RegionImpl from a parsed parameter
// string.
type CreateFromParamsFunc func(params *valuemap.ValueMap, region RegionHandle) (RegionImpl, error)

// CreateFromSerializedFunc rebuilds a RegionImpl from an opaque bundle
// previously produced by RegionImpl.Serialize, restoring its internal
// state. Output buffer contents are restored separately by the Region
// (Region.RestoreOutputs).
type CreateFromSerializedFunc func(bundle []byte, region RegionHandle) (RegionImpl, error)

// Descriptor is one nodeType's registered entry.
type Descriptor struct {
	CreateSpec         CreateSpecFunc
	CreateFromParams    CreateFromParamsFunc
	CreateFromSerialized CreateFromSerializedFunc
}

// Registry is a process-wide (or, in tests, isolated) catalog keyed by
// nodeType string.
type Registry struct {
	mu    sync.Mutex
	descs map[string]Descriptor
	specs map[string]*regionspec.RegionSpec
}

// New returns an empty, independent Registry — used by tests that do not
// want to pollute the shared Default() registry.
func New() *Registry {
	return &Registry{descs: map[string]Descriptor{}, specs: map[string]*regionspec.RegionSpec{}}
}

var defaultOnce sync.Once
var defaultRegistry *Registry

// Default returns the process-wide registry, lazily constructed on first
// use — this is the engine's one piece of required global state (§3
// "Global Engine State ... the RegionImplFactory registry").
func Default() *Registry {
	defaultOnce.Do(func() { defaultRegistry = New() })
	return defaultRegistry
}

// Register adds nodeType's descriptor to the catalog. Fails
// flowerr.ErrDuplicateRegistration if nodeType is already registered.
func (r *Registry) Register(nodeType string, d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descs[nodeType]; ok {
		return fmt.Errorf("factory: node type %q: %w", nodeType, flowerr.ErrDuplicateRegistration)
	}
	r.descs[nodeType] = d
	return nil
}

// Unregister removes nodeType's descriptor and cached spec, if present.
func (r *Registry) Unregister(nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.descs, nodeType)
	delete(r.specs, nodeType)
}

// GetSpec returns nodeType's Spec, constructing and caching it on first
// lookup.
func (r *Registry) GetSpec(nodeType string) (*regionspec.RegionSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.specs[nodeType]; ok {
		return s, nil
	}
	d, ok := r.descs[nodeType]
	if !ok {
		return nil, fmt.Errorf("factory: node type %q: %w", nodeType, flowerr.ErrUnknownNodeType)
	}
	s := d.CreateSpec()
	r.specs[nodeType] = s
	return s, nil
}

// CreateRegionImpl builds a fresh RegionImpl of nodeType from a parameter
// string, parsing it into a ValueMap first.
func (r *Registry) CreateRegionImpl(nodeType, paramString string, region RegionHandle) (RegionImpl, error) {
	d, ok := r.descriptor(nodeType)
	if !ok {
		return nil, fmt.Errorf("factory: node type %q: %w", nodeType, flowerr.ErrUnknownNodeType)
	}
	vm, err := valuemap.Parse(paramString)
	if err != nil {
		return nil, fmt.Errorf("factory: node type %q: %w", nodeType, err)
	}
	return d.CreateFromParams(vm, region)
}

// DeserializeRegionImpl rebuilds nodeType's RegionImpl from a persisted
// bundle.
func (r *Registry) DeserializeRegionImpl(nodeType string, bundle []byte, region RegionHandle) (RegionImpl, error) {
	d, ok := r.descriptor(nodeType)
	if !ok {
		return nil, fmt.Errorf("factory: node type %q: %w", nodeType, flowerr.ErrUnknownNodeType)
	}
	return d.CreateFromSerialized(bundle, region)
}

func (r *Registry) descriptor(nodeType string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[nodeType]
	return d, ok
}
