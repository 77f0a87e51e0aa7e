package simtime

import "testing"

func TestPlusEpsBreaksTies(t *testing.T) {
	base := FromSeconds(5)
	next := base.PlusEps()
	if !base.Less(next) {
		t.Fatalf("expected %v < %v", base, next)
	}
	if next.Seconds() != base.Seconds() {
		t.Fatalf("PlusEps must not advance the tick: got %v want %v", next.Seconds(), base.Seconds())
	}
}

func TestLessOrdersByTickFirst(t *testing.T) {
	early := FromSeconds(1).PlusEps().PlusEps()
	late := FromSeconds(2)
	if !early.Less(late) {
		t.Fatalf("expected tick to dominate epsilon: %v should be < %v", early, late)
	}
}

func TestNeverIsMaximal(t *testing.T) {
	never := Never()
	finite := FromSeconds(1e9)
	if !finite.Less(never) {
		t.Fatalf("expected any finite time to be less than Never()")
	}
	if never.Valid() {
		t.Fatalf("Never() should not be Valid")
	}
}

func TestMaxPicksLater(t *testing.T) {
	a := FromSeconds(3)
	b := FromSeconds(7)
	if Max(a, b).Seconds() != 7 {
		t.Fatalf("Max should pick the later time")
	}
	if Max(b, a).Seconds() != 7 {
		t.Fatalf("Max should be order-independent")
	}
}

func TestEqual(t *testing.T) {
	a := FromSeconds(4).PlusEps()
	b := FromSeconds(4).PlusEps()
	if !a.Equal(b) {
		t.Fatalf("expected equal times to compare equal")
	}
	if a.Equal(FromSeconds(4)) {
		t.Fatalf("PlusEps must distinguish from its base")
	}
}
