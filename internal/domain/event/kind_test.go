package event

import "testing"

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" B ", All())
	if err != nil {
		t.Fatal(err)
	}
	if k != KindB {
		t.Fatalf("expected B, got %q", k)
	}
	if _, err := ParseKind("C", All()); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestParseKindsDropsBlanksAndDuplicates(t *testing.T) {
	kinds, err := ParseKinds([]string{"A", " ", "B", "A"})
	if err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[0] != KindA || kinds[1] != KindB {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	if _, err := ParseKinds([]string{""}); err == nil {
		t.Fatalf("expected error for empty kind list")
	}
}
