package engine

import "testing"

// Two worlds built from the same definitions and driven by the same push
// sequence must agree on every outcome and every digest along the way.
func TestDeterminism_SamePushesSameDigests(t *testing.T) {
	w1, ids1 := cycleWorld(t)
	w2, ids2 := cycleWorld(t)

	if d1, d2 := w1.Digest(), w2.Digest(); d1 != d2 {
		t.Fatalf("initial digest mismatch:\n  %s\n  %s", d1, d2)
	}

	seq := []Direction{West, North, West, South, East, West, West}
	for i, dir := range seq {
		o1 := mustPush(t, w1, ids1["outer_box"], dir)
		o2 := mustPush(t, w2, ids2["outer_box"], dir)
		if o1 != o2 {
			t.Fatalf("step %d (%s): outcome mismatch %v vs %v", i, dir, o1, o2)
		}
		if d1, d2 := w1.Digest(), w2.Digest(); d1 != d2 {
			t.Fatalf("step %d (%s): digest mismatch:\n  %s\n  %s", i, dir, d1, d2)
		}
	}
}

func TestDigest_ReflectsEveryRelocation(t *testing.T) {
	w, ids := cycleWorld(t)

	seen := map[string]bool{w.Digest(): true}
	// The ring keeps rotating on repeated pushes; each rotation is a new
	// state until the ring returns to its start after three pushes.
	for i := 0; i < 2; i++ {
		if out := mustPush(t, w, ids["outer_box"], West); out != Moved {
			t.Fatalf("push %d: got %v", i, out)
		}
		d := w.Digest()
		if seen[d] {
			t.Fatalf("push %d repeated an earlier digest", i)
		}
		seen[d] = true
	}
	if out := mustPush(t, w, ids["outer_box"], West); out != Moved {
		t.Fatalf("closing push: got %v", out)
	}
	if !seen[w.Digest()] {
		t.Fatalf("three rotations did not return the ring to its start")
	}
	expectAt(t, w, ids["box1"], ids["cycle"], 2, 2)
	expectAt(t, w, ids["box2"], ids["cycle"], 3, 2)
	expectAt(t, w, ids["box3"], ids["cycle"], 4, 2)
}
