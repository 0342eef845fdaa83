package dialog

import (
	"reflect"
	"testing"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	if got := r.Items(); len(got) != 0 {
		t.Fatalf("empty ring items = %v", got)
	}
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Errorf("len/cap = %d/%d", r.Len(), r.Cap())
	}
	if got := r.Items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("items = %v", got)
	}
}

func TestRing_MinimumSize(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	if got := r.Items(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("items = %v", got)
	}
}
