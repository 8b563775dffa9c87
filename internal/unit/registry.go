// Package unit resolves conversion factors between measurement units.
//
// An earlier incarnation of this system silently treated unknown units as
// factor 1.0, which corrupted stock figures. The registry therefore fails
// closed: unknown units and cross-dimension conversions are errors, and a
// caller that cannot resolve a factor must supply one explicitly.
package unit

import (
	"fmt"
	"strings"
)

// Dimension is the physical dimension a unit measures.
type Dimension string

const (
	Mass   Dimension = "mass"
	Volume Dimension = "volume"
	Count  Dimension = "count"
	Length Dimension = "length"
)

// BaseUnits gives the canonical unit of each dimension, the unit in which an
// item's stock is accounted.
var BaseUnits = map[Dimension]string{
	Mass:   "kg",
	Volume: "l",
	Count:  "piece",
	Length: "m",
}

type conversion struct {
	dim    Dimension
	factor float64 // multiplier into the dimension's base unit
}

// UnknownUnitError reports a unit absent from the registry.
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit %q: not registered for conversion", e.Unit)
}

// IncompatibleDimensionError reports a conversion across physical dimensions.
type IncompatibleDimensionError struct {
	From, To       string
	FromDim, ToDim Dimension
}

func (e *IncompatibleDimensionError) Error() string {
	return fmt.Sprintf("cannot convert %q (%s) to %q (%s): incompatible dimensions",
		e.From, e.FromDim, e.To, e.ToDim)
}

// DegenerateFactorError reports a registered factor of zero.
type DegenerateFactorError struct {
	Unit string
}

func (e *DegenerateFactorError) Error() string {
	return fmt.Sprintf("unit %q has a zero conversion factor", e.Unit)
}

// Registry maps unit names to their dimension and base-unit factor.
// The zero value is unusable; construct with NewRegistry.
type Registry struct {
	units map[string]conversion
}

// NewRegistry returns a registry pre-loaded with the standard warehouse units.
func NewRegistry() *Registry {
	r := &Registry{units: make(map[string]conversion)}

	// Mass -> kg
	r.Register("kg", Mass, 1.0)
	r.Register("kilogram", Mass, 1.0)
	r.Register("g", Mass, 0.001)
	r.Register("gram", Mass, 0.001)
	r.Register("ton", Mass, 1000.0)

	// Volume -> l
	r.Register("l", Volume, 1.0)
	r.Register("liter", Volume, 1.0)
	r.Register("ml", Volume, 0.001)
	r.Register("gallon", Volume, 3.785)

	// Count -> piece
	r.Register("piece", Count, 1.0)
	r.Register("pack", Count, 1.0)
	r.Register("can", Count, 1.0)
	r.Register("jar", Count, 1.0)
	r.Register("bottle", Count, 1.0)
	r.Register("roll", Count, 1.0)
	r.Register("set", Count, 1.0)
	r.Register("pair", Count, 2.0)

	// Length -> m
	r.Register("m", Length, 1.0)
	r.Register("meter", Length, 1.0)
	r.Register("cm", Length, 0.01)

	return r
}

// Register adds or overrides a unit. Names are matched case-insensitively.
func (r *Registry) Register(name string, dim Dimension, factor float64) {
	r.units[normalize(name)] = conversion{dim: dim, factor: factor}
}

// Known reports whether the unit is registered.
func (r *Registry) Known(name string) bool {
	_, ok := r.units[normalize(name)]
	return ok
}

// BaseUnit returns the canonical unit of the dimension the given unit
// belongs to.
func (r *Registry) BaseUnit(name string) (string, error) {
	c, ok := r.units[normalize(name)]
	if !ok {
		return "", &UnknownUnitError{Unit: name}
	}
	return BaseUnits[c.dim], nil
}

// Resolve returns the factor that converts a quantity in `from` into `to`.
// An empty `to` means the base unit of `from`'s dimension.
func (r *Registry) Resolve(from, to string) (float64, error) {
	fc, ok := r.units[normalize(from)]
	if !ok {
		return 0, &UnknownUnitError{Unit: from}
	}
	if fc.factor == 0 {
		return 0, &DegenerateFactorError{Unit: from}
	}

	if to == "" {
		return fc.factor, nil
	}

	tc, ok := r.units[normalize(to)]
	if !ok {
		return 0, &UnknownUnitError{Unit: to}
	}
	if tc.factor == 0 {
		return 0, &DegenerateFactorError{Unit: to}
	}
	if fc.dim != tc.dim {
		return 0, &IncompatibleDimensionError{From: from, To: to, FromDim: fc.dim, ToDim: tc.dim}
	}

	return fc.factor / tc.factor, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
