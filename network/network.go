// Package network implements the Network container: Region ownership,
// Link wiring, the phase scheduler, the run loop, and save/load (§4.5,
// §4.6, §4.7).
package network

import (
	"fmt"

	"github.com/chhenning/flowengine/engineglobal"
	"github.com/chhenning/flowengine/factory"
	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/ports"
	"github.com/chhenning/flowengine/region"
	"github.com/go-logr/logr"
)

// callback is one registered end-of-iteration listener.
type callback struct {
	name string
	fn   func(n *Network, iteration uint64, userdata any)
	data any
}

// Network is a named dataflow graph: a set of Regions, the Links wiring
// their ports, a phase schedule, and registered callbacks.
type Network struct {
	name      string
	registry  *factory.Registry
	log       logr.Logger
	minVersion int

	regions     map[string]*region.Region
	regionOrder []string // insertion order, resolves §4.5's "unspecified but stable" intra-phase order

	phaseInfo       []map[string]struct{}
	minEnabledPhase int
	maxEnabledPhase int

	callbacks     map[string]*callback
	callbackOrder []string

	iteration   uint64
	initialized bool

	egToken int
}

// Builder constructs a Network fluently, matching the teacher's
// With*/Build idiom.
type Builder struct {
	registry   *factory.Registry
	log        logr.Logger
	minVersion int
}

// NewBuilder returns a Builder with the process-wide default registry and
// a discarding logger.
func NewBuilder() Builder {
	return Builder{registry: factory.Default(), log: logr.Discard(), minVersion: 1}
}

// WithRegistry sets the factory.Registry new Regions resolve nodeTypes
// against.
func (b Builder) WithRegistry(reg *factory.Registry) Builder {
	b.registry = reg
	return b
}

// WithLogger sets the structured logger the Network and its Regions log
// through.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// WithMinVersion sets the minimum persisted version Load will accept.
func (b Builder) WithMinVersion(v int) Builder {
	b.minVersion = v
	return b
}

// Build constructs a named, empty Network and registers it with
// engineglobal.
func (b Builder) Build(name string) *Network {
	n := &Network{
		name:            name,
		registry:        b.registry,
		log:             b.log,
		minVersion:      b.minVersion,
		regions:         map[string]*region.Region{},
		callbacks:       map[string]*callback{},
		minEnabledPhase: 0,
		maxEnabledPhase: -1,
	}
	n.egToken = engineglobal.Register(n)
	return n
}

// Name returns the network's name.
func (n *Network) Name() string { return n.name }

// Teardown uninitializes and removes every region; it satisfies
// engineglobal.Handle so a still-live Network is torn down on process
// shutdown.
func (n *Network) Teardown() {
	// Detach every link first so no region is left with an outgoing link
	// that would make RemoveRegion refuse it.
	for _, name := range n.regionOrder {
		r := n.regions[name]
		r.Uninitialize()
		_ = r.RemoveAllIncomingLinks()
	}
	for _, name := range append([]string(nil), n.regionOrder...) {
		_ = n.RemoveRegion(name)
	}
}

// Close unregisters the network from engineglobal without tearing it
// down — used when the caller destroys the Network directly.
func (n *Network) Close() {
	engineglobal.Unregister(n.egToken)
}

// --- region management (§4.6) ------------------------------------------

// AddRegion constructs a Region of nodeType, assigns it the default
// singleton phase { nextPhase }, and marks the network uninitialized.
// Fails flowerr.ErrDuplicateRegion on a name collision.
func (n *Network) AddRegion(name, nodeType, paramString string) (*region.Region, error) {
	if _, ok := n.regions[name]; ok {
		return nil, fmt.Errorf("network %q: region %q: %w", n.name, name, flowerr.ErrDuplicateRegion)
	}
	r, err := region.NewFromParams(name, nodeType, paramString, n.registry, n.log)
	if err != nil {
		return nil, fmt.Errorf("network %q: %w", n.name, err)
	}
	n.regions[name] = r
	n.regionOrder = append(n.regionOrder, name)
	n.initialized = false

	nextPhase := uint32(len(n.phaseInfo))
	if err := n.SetPhases(name, map[uint32]struct{}{nextPhase: {}}); err != nil {
		return nil, err
	}
	return r, nil
}

// RemoveRegion uninitializes, detaches and erases the named region. Fails
// flowerr.ErrHasOutgoingLinks if it still has an outbound edge.
func (n *Network) RemoveRegion(name string) error {
	r, ok := n.regions[name]
	if !ok {
		return fmt.Errorf("network %q: region %q: %w", n.name, name, flowerr.ErrUnknownRegion)
	}
	if r.HasOutgoingLinks() {
		return fmt.Errorf("network %q: region %q: %w", n.name, name, flowerr.ErrHasOutgoingLinks)
	}

	r.Uninitialize()
	if err := r.RemoveAllIncomingLinks(); err != nil {
		return fmt.Errorf("network %q: %w", n.name, err)
	}

	for p := range n.phaseInfo {
		delete(n.phaseInfo[p], name)
	}
	n.trimPhaseInfo()

	delete(n.regions, name)
	for i, x := range n.regionOrder {
		if x == name {
			n.regionOrder = append(n.regionOrder[:i], n.regionOrder[i+1:]...)
			break
		}
	}
	n.initialized = false
	return nil
}

// Region returns the named region, or ok=false if absent.
func (n *Network) Region(name string) (*region.Region, bool) {
	r, ok := n.regions[name]
	return r, ok
}

// RegionNames returns region names in insertion order.
func (n *Network) RegionNames() []string {
	out := make([]string, len(n.regionOrder))
	copy(out, n.regionOrder)
	return out
}

// --- linking (§4.6) ------------------------------------------------------

// Link resolves default port names from the respective Specs when empty
// strings are passed, then constructs and attaches a Link from
// srcRegion.srcOutput to dstRegion.dstInput with the given fan-in policy
// and propagation delay. Marks the network uninitialized.
func (n *Network) Link(srcRegion, srcOutput, dstRegion, dstInput, linkType, linkParams string, delay int, policy ports.FanInPolicy) (*ports.Link, error) {
	src, ok := n.regions[srcRegion]
	if !ok {
		return nil, fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownRegion)
	}
	dst, ok := n.regions[dstRegion]
	if !ok {
		return nil, fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownRegion)
	}

	srcOutput = ports.ResolvePortName(srcOutput, false, src.Spec())
	dstInput = ports.ResolvePortName(dstInput, true, dst.Spec())

	srcPort, ok := src.Output(srcOutput)
	if !ok {
		return nil, fmt.Errorf("network %q: region %q: output %q: %w", n.name, srcRegion, srcOutput, flowerr.ErrUnknownPort)
	}
	dstPort, ok := dst.Input(dstInput)
	if !ok {
		return nil, fmt.Errorf("network %q: region %q: input %q: %w", n.name, dstRegion, dstInput, flowerr.ErrUnknownPort)
	}

	if err := ports.ValidateElementTypes(srcPort.ElemType, dstPort.ElemType); err != nil {
		return nil, fmt.Errorf("network %q: %w", n.name, err)
	}

	l, err := ports.NewLink(linkType, linkParams, srcPort, delay, policy)
	if err != nil {
		return nil, fmt.Errorf("network %q: %w", n.name, err)
	}
	if err := dstPort.AddLink(l); err != nil {
		return nil, fmt.Errorf("network %q: %w", n.name, err)
	}

	n.initialized = false
	return l, nil
}

// Unlink removes the link from srcRegion.srcOutput to dstRegion.dstInput.
// Fails flowerr.ErrNoSuchLink if the pair is not connected.
func (n *Network) Unlink(srcRegion, srcOutput, dstRegion, dstInput string) error {
	src, ok := n.regions[srcRegion]
	if !ok {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownRegion)
	}
	dst, ok := n.regions[dstRegion]
	if !ok {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownRegion)
	}

	srcOutput = ports.ResolvePortName(srcOutput, false, src.Spec())
	dstInput = ports.ResolvePortName(dstInput, true, dst.Spec())

	dstPort, ok := dst.Input(dstInput)
	if !ok {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownPort)
	}
	l := dstPort.FindLink(srcRegion, srcOutput)
	if l == nil {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrNoSuchLink)
	}
	if err := dstPort.RemoveLink(l); err != nil {
		return fmt.Errorf("network %q: %w", n.name, err)
	}
	n.initialized = false
	return nil
}

// allLinks returns every Link in the network, deduplicated by
// destination attachment — the inbound side is authoritative since every
// Link is attached to exactly one Input.
func (n *Network) allLinks() []*ports.Link {
	var out []*ports.Link
	for _, name := range n.regionOrder {
		r := n.regions[name]
		for _, inName := range r.InputNames() {
			in, _ := r.Input(inName)
			out = append(out, in.GetLinks()...)
		}
	}
	return out
}
