package catalog

import (
	mathrand "math/rand"
	"testing"
)

func TestCatalogInvariants(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		if seen[s.Name] {
			t.Fatalf("duplicate stock name %q", s.Name)
		}
		seen[s.Name] = true
		if s.BasePrice <= 0 {
			t.Fatalf("%s: base price must be positive, got %v", s.Name, s.BasePrice)
		}
		if s.TotalVolume <= 0 {
			t.Fatalf("%s: total volume must be positive, got %d", s.Name, s.TotalVolume)
		}
		if s.Volatility <= 0 || s.Volatility >= 1 {
			t.Fatalf("%s: volatility must be in (0,1), got %v", s.Name, s.Volatility)
		}
		if len(s.Sectors) == 0 {
			t.Fatalf("%s: at least one sector tag required", s.Name)
		}
	}
}

func TestPick(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(7))

	got := Pick(r, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 stocks, got %d", len(got))
	}
	names := map[string]bool{}
	for _, s := range got {
		if names[s.Name] {
			t.Fatalf("duplicate pick %q", s.Name)
		}
		names[s.Name] = true
	}

	if len(Pick(r, 0)) != len(All()) {
		t.Fatalf("n=0 should return the full catalog")
	}
	if len(Pick(r, 999)) != len(All()) {
		t.Fatalf("oversized n should return the full catalog")
	}
}

func TestByName(t *testing.T) {
	if _, err := ByName("Apple"); err != nil {
		t.Fatalf("expected Apple in catalog: %v", err)
	}
	if _, err := ByName("Enron"); err == nil {
		t.Fatalf("expected unknown stock to fail")
	}
}
