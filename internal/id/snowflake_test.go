package id

import "testing"

func TestNew_Unique(t *testing.T) {
	if err := Init(1); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		v := New()
		if seen[v] {
			t.Fatalf("duplicate id %d", v)
		}
		seen[v] = true
	}

	if NewString() == "" {
		t.Error("expected non-empty string id")
	}
}
