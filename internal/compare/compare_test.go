package compare

import "testing"

func fp(v float64) *float64 { return &v }

func TestEqual_Numeric(t *testing.T) {
	tests := []struct {
		name      string
		actual    any
		expected  any
		tolerance float64
		want      bool
	}{
		{"exact", 1.0, 1.0, 0, true},
		{"within tolerance", 1.005, 1.0, 0.01, true},
		// Exactly representable values so the diff is the tolerance
		// itself, not a float artifact a hair above it.
		{"at boundary", 1.25, 1.0, 0.25, true},
		{"beyond boundary", 1.0101, 1.0, 0.01, false},
		{"negative diff", 0.995, 1.0, 0.01, true},
		{"int vs float", 3, 3.0, 0, true},
		{"large magnitude needs large tolerance", 10000.5, 10000.0, 0.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.actual, tt.expected, tt.tolerance); got != tt.want {
				t.Errorf("Equal(%v, %v, %v) = %v, want %v", tt.actual, tt.expected, tt.tolerance, got, tt.want)
			}
		})
	}
}

func TestEqual_NullPropagation(t *testing.T) {
	if !Equal(nil, nil, 0.01) {
		t.Errorf("Equal(nil, nil) = false, want true")
	}
	if Equal(0.0, nil, 1000) {
		t.Errorf("Equal(0, nil) = true, want false for any tolerance")
	}
	if Equal(nil, 0.0, 1000) {
		t.Errorf("Equal(nil, 0) = true, want false for any tolerance")
	}

	// Typed nils from engine outputs behave as absent values.
	if !Equal((*float64)(nil), nil, 0) {
		t.Errorf("Equal((*float64)(nil), nil) = false, want true")
	}
	if !Equal(fp(2.0), 2.0, 0) {
		t.Errorf("Equal(fp(2), 2) = false, want true")
	}
}

func TestEqual_Strings(t *testing.T) {
	if !Equal("East", "East", 0) {
		t.Errorf("Equal(East, East) = false, want true")
	}
	if Equal("East", "West", 100) {
		t.Errorf("Equal(East, West) = true, want false")
	}
	// Mismatched types fall back to equality and fail.
	if Equal("1", 1.0, 100) {
		t.Errorf("Equal(\"1\", 1.0) = true, want false")
	}
}

func TestEqual_Maps(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{
			"equal maps",
			map[string]any{"East": 250.0, "West": 250.0},
			map[string]any{"West": 250.0, "East": 250.0},
			true,
		},
		{
			"value mismatch",
			map[string]any{"East": 250.0},
			map[string]any{"East": 251.0},
			false,
		},
		{
			"missing key fails",
			map[string]any{"East": 250.0},
			map[string]any{"East": 250.0, "West": 250.0},
			false,
		},
		{
			"extra key fails",
			map[string]any{"East": 250.0, "West": 250.0, "North": 1.0},
			map[string]any{"East": 250.0, "West": 250.0},
			false,
		},
		{
			"nested maps",
			map[string]any{"East": map[string]any{"period_1": 100.0, "percent_change": nil}},
			map[string]any{"East": map[string]any{"period_1": 100.05, "percent_change": nil}},
			true,
		},
		{
			"map vs scalar",
			map[string]any{"East": 1.0},
			1.0,
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.actual, tt.expected, 0.1); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqual_EngineMapShape(t *testing.T) {
	actual := map[string]*float64{"East": fp(250), "West": nil}
	expected := map[string]any{"East": 250.0, "West": nil}
	if !Equal(actual, expected, 0.01) {
		t.Errorf("Equal(engine map, json map) = false, want true")
	}
}

func TestEqual_SymmetryOnSelf(t *testing.T) {
	values := []any{
		nil,
		0.0,
		-17.25,
		"label",
		map[string]any{"a": 1.0, "b": nil, "c": map[string]any{"d": "x"}},
	}
	for _, tol := range []float64{0, 0.01, 5} {
		for _, v := range values {
			if !Equal(v, v, tol) {
				t.Errorf("Equal(x, x, %v) = false for %v, want true", tol, v)
			}
		}
	}
}
