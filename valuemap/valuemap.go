// Package valuemap parses a Region's parameter string into a typed
// ValueMap and exposes typed lookups for the engine and RegionImpls.
//
// Grammar (one entry per comma-separated clause):
//
//	key=value                 // scalar: int, float, or bare word (bool/string)
//	key=[v0 v1 v2 ...]        // array literal, space separated
//
// Scalars are typed by how they parse: an integer literal becomes I64, a
// literal containing '.' or an exponent becomes F64, "true"/"false"
// become Bool, anything else is kept as a string (ElementType Byte holds
// the UTF-8 bytes). Array literals are homogeneous and typed the same
// way from their first element.
package valuemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chhenning/flowengine/array"
	"github.com/chhenning/flowengine/flowerr"
)

// Value is one parsed entry: either a scalar or an array, tagged with its
// ElementType. Scalar string values are carried in Str with ElementType
// Byte.
type Value struct {
	ElementType array.ElementType
	I64         int64
	F64         float64
	Bool        bool
	Str         string
	Array       []string // raw tokens for an array literal; re-parsed by typed getters
}

// ValueMap is the parsed parameter string: name -> Value.
type ValueMap struct {
	entries map[string]Value
}

// Parse parses a parameter string into a ValueMap.
func Parse(s string) (*ValueMap, error) {
	vm := &ValueMap{entries: map[string]Value{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return vm, nil
	}

	for _, clause := range splitTopLevel(s, ',') {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		eq := strings.IndexByte(clause, '=')
		if eq < 0 {
			return nil, fmt.Errorf("valuemap: malformed clause %q: %w", clause, flowerr.ErrMalformedState)
		}
		key := strings.TrimSpace(clause[:eq])
		raw := strings.TrimSpace(clause[eq+1:])
		if key == "" {
			return nil, fmt.Errorf("valuemap: empty key in clause %q: %w", clause, flowerr.ErrMalformedState)
		}

		if strings.HasPrefix(raw, "[") {
			if !strings.HasSuffix(raw, "]") {
				return nil, fmt.Errorf("valuemap: unterminated array literal for key %q: %w", key, flowerr.ErrMalformedState)
			}
			inner := strings.TrimSpace(raw[1 : len(raw)-1])
			var toks []string
			if inner != "" {
				toks = strings.Fields(inner)
			}
			vm.entries[key] = Value{ElementType: classify(toks), Array: toks}
			continue
		}

		vm.entries[key] = scalarValue(raw)
	}

	return vm, nil
}

// splitTopLevel splits on sep but not inside [ ] brackets.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func classify(toks []string) array.ElementType {
	if len(toks) == 0 {
		return array.F64
	}
	return scalarValue(toks[0]).ElementType
}

func scalarValue(raw string) Value {
	if raw == "true" || raw == "false" {
		return Value{ElementType: array.Bool, Bool: raw == "true"}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Value{ElementType: array.I64, I64: i}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{ElementType: array.F64, F64: f}
	}
	return Value{ElementType: array.Byte, Str: raw}
}

// Has reports whether key is present.
func (vm *ValueMap) Has(key string) bool {
	_, ok := vm.entries[key]
	return ok
}

// Keys returns the set of keys present, in no particular order.
func (vm *ValueMap) Keys() []string {
	keys := make([]string, 0, len(vm.entries))
	for k := range vm.entries {
		keys = append(keys, k)
	}
	return keys
}

func (vm *ValueMap) get(key string) (Value, error) {
	v, ok := vm.entries[key]
	if !ok {
		return Value{}, fmt.Errorf("valuemap: key %q: %w", key, flowerr.ErrUnknownParameter)
	}
	return v, nil
}

// GetInt64 returns the scalar integer value of key.
func (vm *ValueMap) GetInt64(key string) (int64, error) {
	v, err := vm.get(key)
	if err != nil {
		return 0, err
	}
	if v.ElementType != array.I64 {
		return 0, fmt.Errorf("valuemap: key %q is %v, not an integer: %w", key, v.ElementType, flowerr.ErrParameterTypeMismatch)
	}
	return v.I64, nil
}

// GetFloat64 returns the scalar float value of key. An integer literal is
// accepted and widened.
func (vm *ValueMap) GetFloat64(key string) (float64, error) {
	v, err := vm.get(key)
	if err != nil {
		return 0, err
	}
	switch v.ElementType {
	case array.F64:
		return v.F64, nil
	case array.I64:
		return float64(v.I64), nil
	default:
		return 0, fmt.Errorf("valuemap: key %q is %v, not numeric: %w", key, v.ElementType, flowerr.ErrParameterTypeMismatch)
	}
}

// GetBool returns the scalar boolean value of key.
func (vm *ValueMap) GetBool(key string) (bool, error) {
	v, err := vm.get(key)
	if err != nil {
		return false, err
	}
	if v.ElementType != array.Bool {
		return false, fmt.Errorf("valuemap: key %q is %v, not a bool: %w", key, v.ElementType, flowerr.ErrParameterTypeMismatch)
	}
	return v.Bool, nil
}

// GetString returns the scalar string value of key.
func (vm *ValueMap) GetString(key string) (string, error) {
	v, err := vm.get(key)
	if err != nil {
		return "", err
	}
	if v.ElementType != array.Byte {
		return "", fmt.Errorf("valuemap: key %q is %v, not a string: %w", key, v.ElementType, flowerr.ErrParameterTypeMismatch)
	}
	return v.Str, nil
}

// GetFloat64Array returns an array-literal value of key as []float64.
func (vm *ValueMap) GetFloat64Array(key string) ([]float64, error) {
	v, err := vm.get(key)
	if err != nil {
		return nil, err
	}
	if v.Array == nil {
		return nil, fmt.Errorf("valuemap: key %q is not an array: %w", key, flowerr.ErrParameterTypeMismatch)
	}
	out := make([]float64, len(v.Array))
	for i, tok := range v.Array {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("valuemap: key %q element %d: %w", key, i, flowerr.ErrParameterTypeMismatch)
		}
		out[i] = f
	}
	return out, nil
}

// GetInt64Array returns an array-literal value of key as []int64.
func (vm *ValueMap) GetInt64Array(key string) ([]int64, error) {
	v, err := vm.get(key)
	if err != nil {
		return nil, err
	}
	if v.Array == nil {
		return nil, fmt.Errorf("valuemap: key %q is not an array: %w", key, flowerr.ErrParameterTypeMismatch)
	}
	out := make([]int64, len(v.Array))
	for i, tok := range v.Array {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("valuemap: key %q element %d: %w", key, i, flowerr.ErrParameterTypeMismatch)
		}
		out[i] = n
	}
	return out, nil
}
