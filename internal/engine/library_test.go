package engine

import (
	"testing"

	"github.com/dverbeek/panocast/internal/proto"
)

func TestLibraryAddIdempotent(t *testing.T) {
	l := NewLibrary()
	item := proto.MediaItem{ID: "m1", Title: "First"}

	if !l.Add(item) {
		t.Fatal("first add should insert")
	}
	if l.Add(item) {
		t.Fatal("duplicate add should be a no-op")
	}
	if l.Len() != 1 {
		t.Fatalf("len: %d", l.Len())
	}
}

func TestLibraryRemoveIdempotent(t *testing.T) {
	l := NewLibrary()
	l.Add(proto.MediaItem{ID: "m1"})

	if !l.Remove("m1") {
		t.Fatal("remove of present item should report true")
	}
	if l.Remove("m1") {
		t.Fatal("second remove should report false")
	}
	if l.Remove("never-there") {
		t.Fatal("removing an unknown id should report false")
	}
}

func TestLibraryInsertionOrder(t *testing.T) {
	l := NewLibrary()
	l.Add(proto.MediaItem{ID: "a"})
	l.Add(proto.MediaItem{ID: "b"})
	l.Add(proto.MediaItem{ID: "c"})
	l.Remove("b")
	l.Add(proto.MediaItem{ID: "d"})

	items := l.Items()
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.ID
	}
	want := []string{"a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("items: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}
