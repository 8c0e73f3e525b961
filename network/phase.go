package network

import (
	"fmt"

	"github.com/chhenning/flowengine/flowerr"
)

// SetPhases replaces region's phase membership with newPhases (§4.5).
// Fails flowerr.ErrEmptyPhases if newPhases is empty, or
// flowerr.ErrPhaseTooLarge if the jump in phaseInfo length exceeds 3.
func (n *Network) SetPhases(regionName string, newPhases map[uint32]struct{}) error {
	r, ok := n.regions[regionName]
	if !ok {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrUnknownRegion)
	}
	if len(newPhases) == 0 {
		return fmt.Errorf("network %q: region %q: %w", n.name, regionName, flowerr.ErrEmptyPhases)
	}

	var maxPhase uint32
	for p := range newPhases {
		if p > maxPhase {
			maxPhase = p
		}
	}
	wantLen := int(maxPhase) + 1
	if grow := wantLen - len(n.phaseInfo); grow > 3 {
		return fmt.Errorf("network %q: region %q: %w", n.name, regionName, flowerr.ErrPhaseTooLarge)
	}
	for len(n.phaseInfo) < wantLen {
		n.phaseInfo = append(n.phaseInfo, map[string]struct{}{})
	}

	for p := 0; p < len(n.phaseInfo); p++ {
		if _, want := newPhases[uint32(p)]; want {
			n.phaseInfo[p][regionName] = struct{}{}
		} else {
			delete(n.phaseInfo[p], regionName)
		}
	}

	r.SetPhases(newPhases)
	n.resetEnabledPhases()
	n.initialized = false
	return nil
}

// resetEnabledPhases sets minEnabledPhase/maxEnabledPhase to the bounds of
// the first and last non-empty phase slots.
func (n *Network) resetEnabledPhases() {
	min, max := -1, -1
	for p, regions := range n.phaseInfo {
		if len(regions) == 0 {
			continue
		}
		if min == -1 {
			min = p
		}
		max = p
	}
	if min == -1 {
		n.minEnabledPhase, n.maxEnabledPhase = 0, -1
		return
	}
	n.minEnabledPhase, n.maxEnabledPhase = min, max
}

// trimPhaseInfo drops trailing empty phase slots, called after
// RemoveRegion.
func (n *Network) trimPhaseInfo() {
	for len(n.phaseInfo) > 0 && len(n.phaseInfo[len(n.phaseInfo)-1]) == 0 {
		n.phaseInfo = n.phaseInfo[:len(n.phaseInfo)-1]
	}
	n.resetEnabledPhases()
}

// SetMinEnabledPhase narrows the enabled-phase window's lower bound.
// Fails flowerr.ErrPhaseOutOfRange if p is at or beyond phaseInfo's
// length.
func (n *Network) SetMinEnabledPhase(p int) error {
	if p < 0 || p >= len(n.phaseInfo) {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrPhaseOutOfRange)
	}
	n.minEnabledPhase = p
	return nil
}

// SetMaxEnabledPhase narrows the enabled-phase window's upper bound.
// Fails flowerr.ErrPhaseOutOfRange if p is at or beyond phaseInfo's
// length.
func (n *Network) SetMaxEnabledPhase(p int) error {
	if p < 0 || p >= len(n.phaseInfo) {
		return fmt.Errorf("network %q: %w", n.name, flowerr.ErrPhaseOutOfRange)
	}
	n.maxEnabledPhase = p
	return nil
}

// MinEnabledPhase returns the current lower bound of the enabled-phase
// window.
func (n *Network) MinEnabledPhase() int { return n.minEnabledPhase }

// MaxEnabledPhase returns the current upper bound of the enabled-phase
// window.
func (n *Network) MaxEnabledPhase() int { return n.maxEnabledPhase }

// PhaseCount returns the number of phase slots currently allocated.
func (n *Network) PhaseCount() int { return len(n.phaseInfo) }

// regionsInPhase returns the region names assigned to phase p, in
// insertion order.
func (n *Network) regionsInPhase(p int) []string {
	var out []string
	set := n.phaseInfo[p]
	for _, name := range n.regionOrder {
		if _, ok := set[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
