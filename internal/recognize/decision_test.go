package recognize

import "testing"

func TestDecide_BoundaryAccepts(t *testing.T) {
	if Decide(0.6, 0.6) != Accept {
		t.Error("similarity exactly at threshold must accept")
	}
}

func TestDecide_JustBelowRejects(t *testing.T) {
	if Decide(0.6-1e-12, 0.6) != Reject {
		t.Error("similarity below threshold must reject, however small the gap")
	}
}

func TestDecide_Monotonic(t *testing.T) {
	threshold := 0.5
	prev := Decide(-1, threshold)
	for s := -1.0; s <= 1.0; s += 0.01 {
		cur := Decide(s, threshold)
		if prev == Accept && cur == Reject {
			t.Fatalf("decision flipped from accept back to reject at similarity %g", s)
		}
		prev = cur
	}
}

func TestDecision_String(t *testing.T) {
	if Accept.String() != "accept" {
		t.Errorf("expected 'accept', got %q", Accept.String())
	}
	if Reject.String() != "reject" {
		t.Errorf("expected 'reject', got %q", Reject.String())
	}
}
