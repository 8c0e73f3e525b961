// Package flowerr collects the sentinel errors returned across the engine.
//
// Callers compare with errors.Is; call sites wrap a sentinel with
// fmt.Errorf("...: %w", flowerr.X) to attach the region/port/phase name
// that was involved.
package flowerr

import "errors"

var (
	// ErrUnknownRegion is returned when a named region does not exist in
	// the network.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrUnknownPort is returned when a named input or output port does
	// not exist on a region.
	ErrUnknownPort = errors.New("unknown port")

	// ErrUnknownNodeType is returned by the factory for an unregistered
	// nodeType string.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrDuplicateRegion is returned when addRegion is called with a name
	// already present in the network.
	ErrDuplicateRegion = errors.New("duplicate region name")

	// ErrDuplicateCallback is returned when setCallback is called with a
	// name already registered.
	ErrDuplicateCallback = errors.New("duplicate callback name")

	// ErrDuplicateRegistration is returned by the factory when
	// registering a nodeType that is already registered.
	ErrDuplicateRegistration = errors.New("duplicate node type registration")

	// ErrHasOutgoingLinks is returned by removeRegion when the region
	// still has at least one outbound link.
	ErrHasOutgoingLinks = errors.New("region has outgoing links")

	// ErrLinkTypeMismatch is returned at link construction when the
	// source and destination element types differ.
	ErrLinkTypeMismatch = errors.New("link source and destination element types differ")

	// ErrLinkFanInUnsupported is returned when a second link is added to
	// an input whose fan-in policy does not accept multiple links.
	ErrLinkFanInUnsupported = errors.New("input does not support fan-in")

	// ErrNoSuchLink is returned by removeLink/unlink when the requested
	// endpoints are not connected.
	ErrNoSuchLink = errors.New("no such link")

	// ErrEmptyPhases is returned by setPhases when given an empty phase
	// set.
	ErrEmptyPhases = errors.New("phase set must not be empty")

	// ErrPhaseTooLarge is returned by setPhases when the requested phase
	// jumps the phase table by more than 3 slots; a warning-grade guard
	// against accidental misuse, not a semantic limit.
	ErrPhaseTooLarge = errors.New("phase jump too large")

	// ErrPhaseOutOfRange is returned when setting an enabled-phase bound
	// at or beyond the phase table length.
	ErrPhaseOutOfRange = errors.New("phase out of range")

	// ErrNotInitialized is returned by compute when the owning region has
	// not been initialized.
	ErrNotInitialized = errors.New("region not initialized")

	// ErrRegionInitialized is returned by removeLink when the owning
	// region is still initialized.
	ErrRegionInitialized = errors.New("region is initialized")

	// ErrEmptyCommand is returned by executeCommand when given zero
	// arguments.
	ErrEmptyCommand = errors.New("command arguments must not be empty")

	// ErrUnknownParameter is returned by ValueMap lookups and parameter
	// accessors for a key absent from the map/spec.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrParameterTypeMismatch is returned when a parameter is fetched
	// with the wrong element type.
	ErrParameterTypeMismatch = errors.New("parameter type mismatch")

	// ErrUnsupportedVersion is returned by load when the persisted
	// version is below the minimum this build accepts.
	ErrUnsupportedVersion = errors.New("unsupported persisted version")

	// ErrMalformedState is returned by load/netio parsing on a
	// structurally invalid frame.
	ErrMalformedState = errors.New("malformed persisted state")

	// ErrInvalidLinkRef is returned by load when a persisted link
	// references a region or port name that did not resolve.
	ErrInvalidLinkRef = errors.New("invalid link reference")
)
