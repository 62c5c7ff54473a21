package rotation

import "testing"

func TestSequentialSwitchEveryAccount(t *testing.T) {
	s := NewSelector(ModeSequential, 1, []string{"p0", "p1"})
	want := []string{"p0", "p1", "p0"}
	for pos, w := range want {
		if got := s.Select(pos).URL; got != w {
			t.Errorf("position %d: got %s, want %s", pos, got, w)
		}
	}
}

func TestSequentialHoldsForSwitchAfter(t *testing.T) {
	s := NewSelector(ModeSequential, 3, []string{"a", "b"})
	want := []string{"a", "a", "a", "b", "b", "b", "a"}
	for pos, w := range want {
		if got := s.Select(pos).URL; got != w {
			t.Errorf("position %d: got %s, want %s", pos, got, w)
		}
	}
}

func TestSequentialIsPureFunctionOfPosition(t *testing.T) {
	s := NewSelector(ModeSequential, 2, []string{"a", "b", "c"})
	first := s.Select(5)
	_ = s.Select(0)
	_ = s.Select(1)
	if again := s.Select(5); again != first {
		t.Fatalf("Select(5) changed from %v to %v", first, again)
	}
}

func TestRandomUsesIntn(t *testing.T) {
	var calls []int
	s := Selector{Mode: ModeRandom, Proxies: []string{"a", "b", "c"}, Intn: func(n int) int {
		calls = append(calls, n)
		return 2
	}}
	if got := s.Select(0).URL; got != "c" {
		t.Fatalf("got %s", got)
	}
	if len(calls) != 1 || calls[0] != 3 {
		t.Fatalf("Intn calls = %v", calls)
	}
}

func TestRandomStaysInRange(t *testing.T) {
	s := NewSelector(ModeRandom, 1, []string{"a", "b"})
	for i := 0; i < 100; i++ {
		if got := s.Select(i).URL; got != "a" && got != "b" {
			t.Fatalf("unexpected proxy %q", got)
		}
	}
}

func TestNoProxies(t *testing.T) {
	for _, mode := range []string{ModeSequential, ModeRandom} {
		if a := NewSelector(mode, 1, nil).Select(4); !a.Empty() {
			t.Errorf("%s: expected empty assignment, got %v", mode, a)
		}
	}
}
