package network

import (
	"fmt"

	"github.com/chhenning/flowengine/flowerr"
)

// initialize runs the full §4.6 choreography: size every Region's ports,
// initialize every Region's impl, reset the enabled-phase window, and
// re-size every Link's delay queue now that Output sizes are final.
func (n *Network) initialize() error {
	for _, name := range n.regionOrder {
		if err := n.regions[name].InitOutputs(); err != nil {
			return fmt.Errorf("network %q: %w", n.name, err)
		}
	}
	for _, l := range n.allLinks() {
		l.ResizeDelayQueue()
	}
	for _, name := range n.regionOrder {
		n.regions[name].InitInputs()
	}
	for _, name := range n.regionOrder {
		if err := n.regions[name].Initialize(); err != nil {
			return fmt.Errorf("network %q: %w", n.name, err)
		}
	}
	n.resetEnabledPhases()
	n.initialized = true
	return nil
}

// Run executes n iterations of the §4.6 run loop: lazily initializing on
// first call, then per iteration computing every region in every enabled
// phase, firing callbacks, and shifting every link's delay queue exactly
// once at the end.
func (n *Network) Run(iterations int) error {
	if !n.initialized {
		if err := n.initialize(); err != nil {
			return err
		}
	}
	if len(n.phaseInfo) == 0 {
		return nil
	}
	if n.maxEnabledPhase >= len(n.phaseInfo) {
		return fmt.Errorf("network %q: max enabled phase %d out of range [0,%d)", n.name, n.maxEnabledPhase, len(n.phaseInfo))
	}

	for i := 0; i < iterations; i++ {
		n.iteration++

		for p := n.minEnabledPhase; p <= n.maxEnabledPhase; p++ {
			for _, name := range n.regionsInPhase(p) {
				r := n.regions[name]
				r.PrepareInputs()
				if err := r.Compute(); err != nil {
					return fmt.Errorf("network %q: iteration %d: %w", n.name, n.iteration, err)
				}
			}
		}

		for _, name := range n.callbackOrder {
			cb := n.callbacks[name]
			cb.fn(n, n.iteration, cb.data)
		}

		for _, l := range n.allLinks() {
			l.ShiftBufferedData()
		}
	}
	return nil
}

// Iteration returns the number of iterations run so far.
func (n *Network) Iteration() uint64 { return n.iteration }

// Initialized reports whether initialize has completed since the last
// topology change.
func (n *Network) Initialized() bool { return n.initialized }

// --- callbacks (§6 "Callbacks") -----------------------------------------

// SetCallback registers fn under name, to be fired with (n, iteration,
// userdata) once per iteration in insertion order. Fails
// flowerr.ErrDuplicateCallback on a name collision.
func (n *Network) SetCallback(name string, fn func(n *Network, iteration uint64, userdata any), userdata any) error {
	if _, ok := n.callbacks[name]; ok {
		return fmt.Errorf("network %q: callback %q: %w", n.name, name, flowerr.ErrDuplicateCallback)
	}
	n.callbacks[name] = &callback{name: name, fn: fn, data: userdata}
	n.callbackOrder = append(n.callbackOrder, name)
	return nil
}

// UnsetCallback removes name's callback. Idempotent.
func (n *Network) UnsetCallback(name string) {
	if _, ok := n.callbacks[name]; !ok {
		return
	}
	delete(n.callbacks, name)
	for i, x := range n.callbackOrder {
		if x == name {
			n.callbackOrder = append(n.callbackOrder[:i], n.callbackOrder[i+1:]...)
			break
		}
	}
}
