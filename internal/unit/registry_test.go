package unit_test

import (
	"errors"
	"math"
	"testing"

	"stockledger/internal/unit"
)

func TestResolve(t *testing.T) {
	r := unit.NewRegistry()

	tests := []struct {
		name string
		from string
		to   string
		want float64
	}{
		{"gram to kg", "g", "kg", 0.001},
		{"ton to kg", "ton", "kg", 1000},
		{"kg to gram", "kg", "g", 1000},
		{"ml to liter", "ml", "l", 0.001},
		{"gallon to liter", "gallon", "l", 3.785},
		{"pair to piece", "pair", "piece", 2},
		{"cm to m", "cm", "m", 0.01},
		{"identity", "kg", "kg", 1},
		{"empty target means dimension base", "g", "", 0.001},
		{"case insensitive", "KG", "G", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.from, tt.to)
			if err != nil {
				t.Fatalf("Resolve(%q, %q) failed: %v", tt.from, tt.to, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Resolve(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestResolveUnknownUnitFailsClosed(t *testing.T) {
	r := unit.NewRegistry()

	_, err := r.Resolve("bucket", "kg")
	var unknown *unit.UnknownUnitError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownUnitError, got %v", err)
	}
	if unknown.Unit != "bucket" {
		t.Errorf("error names unit %q, want %q", unknown.Unit, "bucket")
	}

	if _, err := r.Resolve("kg", "bucket"); err == nil {
		t.Error("unknown target unit must be rejected")
	}
}

func TestResolveIncompatibleDimensions(t *testing.T) {
	r := unit.NewRegistry()

	_, err := r.Resolve("kg", "l")
	var incompat *unit.IncompatibleDimensionError
	if !errors.As(err, &incompat) {
		t.Fatalf("expected IncompatibleDimensionError, got %v", err)
	}
	if incompat.FromDim != unit.Mass || incompat.ToDim != unit.Volume {
		t.Errorf("error carries dims %s/%s, want mass/volume", incompat.FromDim, incompat.ToDim)
	}
}

func TestResolveDegenerateFactor(t *testing.T) {
	r := unit.NewRegistry()
	r.Register("broken", unit.Mass, 0)

	_, err := r.Resolve("broken", "kg")
	var degenerate *unit.DegenerateFactorError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected DegenerateFactorError, got %v", err)
	}
}

func TestRegisterOverride(t *testing.T) {
	r := unit.NewRegistry()
	r.Register("crate", unit.Count, 12)

	got, err := r.Resolve("crate", "piece")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != 12 {
		t.Errorf("crate factor = %v, want 12", got)
	}

	base, err := r.BaseUnit("crate")
	if err != nil {
		t.Fatalf("BaseUnit failed: %v", err)
	}
	if base != "piece" {
		t.Errorf("BaseUnit(crate) = %q, want piece", base)
	}
}

func TestKnown(t *testing.T) {
	r := unit.NewRegistry()
	if !r.Known("kg") {
		t.Error("kg should be known")
	}
	if !r.Known(" Kg ") {
		t.Error("unit lookup should trim and lowercase")
	}
	if r.Known("furlong") {
		t.Error("furlong should not be known")
	}
}
