package snowflake

import "testing"

func TestNextIDMonotonic(t *testing.T) {
	node, err := NewNode(7)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	var last int64 = -1
	for i := 0; i < 10000; i++ {
		id := node.NextID()
		if id <= last {
			t.Fatalf("id %d not strictly increasing after %d", id, last)
		}
		last = id
	}
}

func TestParseRoundTrip(t *testing.T) {
	node, err := NewNode(42)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	id := node.NextID()
	parsed := Parse(id)
	if parsed.Issuer != 42 {
		t.Fatalf("issuer = %d, want 42", parsed.Issuer)
	}
}

func TestCompareStrictOrder(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	a := node.NextID()
	b := node.NextID()
	if Compare(a, b) != -1 {
		t.Fatalf("Compare(a,b) = %d, want -1", Compare(a, b))
	}
	if Compare(b, a) != 1 {
		t.Fatalf("Compare(b,a) = %d, want 1", Compare(b, a))
	}
	if Compare(a, a) != 0 {
		t.Fatalf("Compare(a,a) = %d, want 0", Compare(a, a))
	}
}

func TestNewNodeRejectsOutOfRangeIssuer(t *testing.T) {
	if _, err := NewNode(-1); err == nil {
		t.Fatal("expected error for negative issuer")
	}
	if _, err := NewNode(1024); err == nil {
		t.Fatal("expected error for issuer over max")
	}
}
