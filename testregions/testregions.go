// Package testregions provides minimal RegionImpl fixtures used to drive
// the engine's own test suite (§8's S1-S6 scenarios). These are test
// nodes in the sense §1 anticipates ("test nodes" are named alongside the
// spatial pooler and cell algorithms as out-of-scope *learning* impls);
// nothing here performs inference, it only exercises the engine's
// propagation-delay and phase-gating machinery.
package testregions

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/factory"
	"github.com/chhenning/flowengine/flowerr"
	"github.com/chhenning/flowengine/regionspec"
	"github.com/chhenning/flowengine/valuemap"
)

// paramStore is a tiny generic parameter box shared by the fixtures
// below; it is not meant to be a general-purpose parameter system, just
// enough to satisfy the RegionImpl contract's typed accessors.
type paramStore struct {
	f64 map[string]float64
	i64 map[string]int64
	b   map[string]bool
	s   map[string]string
	f64arr map[string][]float64
}

func newParamStore() paramStore {
	return paramStore{
		f64: map[string]float64{}, i64: map[string]int64{}, b: map[string]bool{},
		s: map[string]string{}, f64arr: map[string][]float64{},
	}
}

func (p *paramStore) GetParameterInt64(name string) (int64, error) {
	v, ok := p.i64[name]
	if !ok {
		return 0, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownParameter)
	}
	return v, nil
}
func (p *paramStore) SetParameterInt64(name string, v int64) error { p.i64[name] = v; return nil }

func (p *paramStore) GetParameterFloat64(name string) (float64, error) {
	v, ok := p.f64[name]
	if !ok {
		return 0, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownParameter)
	}
	return v, nil
}
func (p *paramStore) SetParameterFloat64(name string, v float64) error { p.f64[name] = v; return nil }

func (p *paramStore) GetParameterBool(name string) (bool, error) {
	v, ok := p.b[name]
	if !ok {
		return false, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownParameter)
	}
	return v, nil
}
func (p *paramStore) SetParameterBool(name string, v bool) error { p.b[name] = v; return nil }

func (p *paramStore) GetParameterString(name string) (string, error) {
	v, ok := p.s[name]
	if !ok {
		return "", fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownParameter)
	}
	return v, nil
}
func (p *paramStore) SetParameterString(name string, v string) error { p.s[name] = v; return nil }

func (p *paramStore) GetParameterFloat64Array(name string) ([]float64, error) {
	v, ok := p.f64arr[name]
	if !ok {
		return nil, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownParameter)
	}
	return v, nil
}
func (p *paramStore) SetParameterFloat64Array(name string, v []float64) error {
	p.f64arr[name] = v
	return nil
}

// --- Emitter -----------------------------------------------------------

// EmitterNodeType is the nodeType string for the constant/sequence
// emitter fixture (drives r1 in S1/S2).
const EmitterNodeType = "testEmitter"

// Emitter writes a constant (or, given a "sequence" parameter,
// per-iteration) value into every element of its single output.
type Emitter struct {
	paramStore
	region factory.RegionHandle
	out    string
	size   int64
	iter   int
}

// EmitterSpec returns the Emitter's RegionSpec.
func EmitterSpec() *regionspec.RegionSpec {
	return regionspec.New(EmitterNodeType, nil,
		[]regionspec.PortSpec{{Name: "out", ElementType: array.F64, Count: 0, Default: true}},
		[]regionspec.ParamSpec{
			{Name: "value", ElementType: array.F64, Default: "0"},
			{Name: "size", ElementType: array.I64, Default: "1"},
			{Name: "sequence", ElementType: array.F64, Count: 0},
		})
}

// NewEmitter constructs an Emitter from parsed parameters.
func NewEmitter(p *valuemap.ValueMap, region factory.RegionHandle) (factory.RegionImpl, error) {
	e := &Emitter{paramStore: newParamStore(), region: region, out: "out", size: 1}
	if p.Has("size") {
		n, err := p.GetInt64("size")
		if err != nil {
			return nil, err
		}
		e.size = n
	}
	e.SetParameterInt64("size", e.size)

	if p.Has("value") {
		v, err := p.GetFloat64("value")
		if err != nil {
			return nil, err
		}
		e.SetParameterFloat64("value", v)
	} else {
		e.SetParameterFloat64("value", 0)
	}

	if p.Has("sequence") {
		seq, err := p.GetFloat64Array("sequence")
		if err != nil {
			return nil, err
		}
		e.SetParameterFloat64Array("sequence", seq)
	}
	return e, nil
}

// NewEmitterFromSerialized rebuilds an Emitter from a persisted bundle
// (little-endian: iter int64, size int64, value float64, seqLen int64,
// seq float64s, output contents restored separately by the caller).
func NewEmitterFromSerialized(bundle []byte, region factory.RegionHandle) (factory.RegionImpl, error) {
	e := &Emitter{paramStore: newParamStore(), region: region, out: "out"}
	if len(bundle) < 32 {
		return nil, fmt.Errorf("testregions: emitter bundle too short: %w", flowerr.ErrMalformedState)
	}
	e.iter = int(int64(binary.LittleEndian.Uint64(bundle[0:8])))
	e.size = int64(binary.LittleEndian.Uint64(bundle[8:16]))
	e.SetParameterInt64("size", e.size)
	e.SetParameterFloat64("value", math.Float64frombits(binary.LittleEndian.Uint64(bundle[16:24])))
	seqLen := int(int64(binary.LittleEndian.Uint64(bundle[24:32])))
	off := 32
	if seqLen > 0 {
		seq := make([]float64, seqLen)
		for i := 0; i < seqLen; i++ {
			seq[i] = math.Float64frombits(binary.LittleEndian.Uint64(bundle[off : off+8]))
			off += 8
		}
		e.SetParameterFloat64Array("sequence", seq)
	}
	return e, nil
}

func (e *Emitter) Initialize() error { return nil }

func (e *Emitter) GetNodeOutputElementCount(name string) (int, error) {
	if name != e.out {
		return 0, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownPort)
	}
	return int(e.size), nil
}

func (e *Emitter) Compute() error {
	e.iter++
	out, ok := e.region.Output(e.out)
	if !ok {
		return fmt.Errorf("testregions: %q: %w", e.out, flowerr.ErrUnknownPort)
	}

	value, _ := e.GetParameterFloat64("value")
	if seq, err := e.GetParameterFloat64Array("sequence"); err == nil && len(seq) > 0 {
		idx := e.iter - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		value = seq[idx]
	}
	out.Array.FillF64(value)
	return nil
}

func (e *Emitter) ExecuteCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", flowerr.ErrEmptyCommand
	}
	return "", nil
}

func (e *Emitter) Serialize(bundle []byte) ([]byte, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(e.iter)))
	bundle = append(bundle, buf[:]...)
	binary.LittleEndian.PutUint64(buf[:], uint64(e.size))
	bundle = append(bundle, buf[:]...)
	v, _ := e.GetParameterFloat64("value")
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	bundle = append(bundle, buf[:]...)
	seq, _ := e.GetParameterFloat64Array("sequence")
	binary.LittleEndian.PutUint64(buf[:], uint64(len(seq)))
	bundle = append(bundle, buf[:]...)
	for _, v := range seq {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		bundle = append(bundle, buf[:]...)
	}
	return bundle, nil
}

// --- Adder ---------------------------------------------------------

// AdderNodeType is the nodeType string for the two-input accumulator
// fixture used to drive S1 (sink side), S3 and S4.
const AdderNodeType = "testAdder"

// Adder computes out[i] = base + in0[i] + in1[i], skipping any input
// that is not connected (element count 0). Inputs narrower than the
// output are broadcast by index modulo their own count, so a
// single-element feedback source can drive a wide output.
type Adder struct {
	paramStore
	region factory.RegionHandle
	size   int64
}

// AdderSpec returns the Adder's RegionSpec.
func AdderSpec() *regionspec.RegionSpec {
	return regionspec.New(AdderNodeType,
		[]regionspec.PortSpec{
			{Name: "in0", ElementType: array.F64, Count: 0, Required: false},
			{Name: "in1", ElementType: array.F64, Count: 0, Required: false},
		},
		[]regionspec.PortSpec{{Name: "out", ElementType: array.F64, Count: 0, Default: true}},
		[]regionspec.ParamSpec{
			{Name: "base", ElementType: array.F64, Default: "0"},
			{Name: "size", ElementType: array.I64, Default: "1"},
		})
}

// NewAdder constructs an Adder from parsed parameters.
func NewAdder(p *valuemap.ValueMap, region factory.RegionHandle) (factory.RegionImpl, error) {
	a := &Adder{paramStore: newParamStore(), region: region, size: 1}
	if p.Has("size") {
		n, err := p.GetInt64("size")
		if err != nil {
			return nil, err
		}
		a.size = n
	}
	a.SetParameterInt64("size", a.size)

	base := 0.0
	if p.Has("base") {
		v, err := p.GetFloat64("base")
		if err != nil {
			return nil, err
		}
		base = v
	}
	a.SetParameterFloat64("base", base)
	return a, nil
}

// NewAdderFromSerialized rebuilds an Adder from a persisted bundle
// (little-endian: size int64, base float64).
func NewAdderFromSerialized(bundle []byte, region factory.RegionHandle) (factory.RegionImpl, error) {
	a := &Adder{paramStore: newParamStore(), region: region}
	if len(bundle) < 16 {
		return nil, fmt.Errorf("testregions: adder bundle too short: %w", flowerr.ErrMalformedState)
	}
	a.size = int64(binary.LittleEndian.Uint64(bundle[0:8]))
	a.SetParameterInt64("size", a.size)
	a.SetParameterFloat64("base", math.Float64frombits(binary.LittleEndian.Uint64(bundle[8:16])))
	return a, nil
}

func (a *Adder) Initialize() error { return nil }

func (a *Adder) GetNodeOutputElementCount(name string) (int, error) {
	if name != "out" {
		return 0, fmt.Errorf("testregions: %q: %w", name, flowerr.ErrUnknownPort)
	}
	return int(a.size), nil
}

func (a *Adder) Compute() error {
	out, ok := a.region.Output("out")
	if !ok {
		return fmt.Errorf("testregions: out: %w", flowerr.ErrUnknownPort)
	}
	base, _ := a.GetParameterFloat64("base")

	n := out.Array.Count()
	for i := 0; i < n; i++ {
		v := base
		if in0, ok := a.region.Input("in0"); ok && in0.Array.Count() > 0 {
			v += in0.Array.F64At(i % in0.Array.Count())
		}
		if in1, ok := a.region.Input("in1"); ok && in1.Array.Count() > 0 {
			v += in1.Array.F64At(i % in1.Array.Count())
		}
		out.Array.SetF64At(i, v)
	}
	return nil
}

func (a *Adder) ExecuteCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", flowerr.ErrEmptyCommand
	}
	return "", nil
}

func (a *Adder) Serialize(bundle []byte) ([]byte, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(a.size))
	bundle = append(bundle, buf[:]...)
	base, _ := a.GetParameterFloat64("base")
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(base))
	bundle = append(bundle, buf[:]...)
	return bundle, nil
}

// Register registers both fixtures with r.
func Register(r *factory.Registry) error {
	if err := r.Register(EmitterNodeType, factory.Descriptor{
		CreateSpec:           EmitterSpec,
		CreateFromParams:     NewEmitter,
		CreateFromSerialized: NewEmitterFromSerialized,
	}); err != nil {
		return err
	}
	return r.Register(AdderNodeType, factory.Descriptor{
		CreateSpec:           AdderSpec,
		CreateFromParams:     NewAdder,
		CreateFromSerialized: NewAdderFromSerialized,
	})
}
