package util

import "testing"

func TestTailEvictsOldest(t *testing.T) {
	tl := NewTail[int](3)
	for i := 1; i <= 5; i++ {
		tl.Push(i)
	}
	got := tl.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot %v, want %v", got, want)
		}
	}
	if tl.Len() != 3 {
		t.Fatalf("len: %d", tl.Len())
	}
}

func TestTailPartial(t *testing.T) {
	tl := NewTail[string](4)
	tl.Push("a")
	tl.Push("b")
	got := tl.Snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("snapshot %v", got)
	}
	if tl.Len() != 2 {
		t.Fatalf("len: %d", tl.Len())
	}
}

func TestTailExactCapacity(t *testing.T) {
	tl := NewTail[int](2)
	tl.Push(1)
	tl.Push(2)
	got := tl.Snapshot()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("snapshot %v", got)
	}
}
