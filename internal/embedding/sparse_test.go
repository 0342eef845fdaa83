package embedding

import (
	"math"
	"testing"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"both-empty", Vector{}, Vector{}, 0},
		{"one-empty", Vector{Indices: []int{1}, Values: []float64{1}}, Vector{}, 0},
		{"disjoint", Vector{Indices: []int{0, 2}, Values: []float64{1, 1}}, Vector{Indices: []int{1, 3}, Values: []float64{1, 1}}, 0},
		{"overlap", Vector{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}, Vector{Indices: []int{2, 5, 9}, Values: []float64{4, 5, 6}}, 2*4 + 3*5},
		{"identical", Vector{Indices: []int{3}, Values: []float64{0.5}}, Vector{Indices: []int{3}, Values: []float64{0.5}}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dot(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Dot = %v, want %v", got, tt.want)
			}
			if got := Dot(tt.b, tt.a); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Dot not symmetric: %v", got)
			}
		})
	}
}

func TestVectorNormAndClone(t *testing.T) {
	v := Vector{Indices: []int{0, 1}, Values: []float64{3, 4}}
	if v.Norm() != 5 {
		t.Errorf("Norm = %v", v.Norm())
	}
	c := v.Clone()
	c.Values[0] = 100
	if v.Values[0] != 3 {
		t.Error("Clone shares backing array")
	}
	if (Vector{}).IsZero() != true || v.IsZero() {
		t.Error("IsZero wrong")
	}
}
