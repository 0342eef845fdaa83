package embedding

import "math"

// Vector is a sparse vector stored as parallel slices sorted by index.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero component.
func (v Vector) IsZero() bool { return len(v.Indices) == 0 }

// Len is the number of stored components.
func (v Vector) Len() int { return len(v.Indices) }

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot computes the dot product by merge-joining the sorted index arrays.
func Dot(a, b Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Clone returns a copy that shares no backing arrays with v.
func (v Vector) Clone() Vector {
	return Vector{
		Indices: append([]int(nil), v.Indices...),
		Values:  append([]float64(nil), v.Values...),
	}
}
