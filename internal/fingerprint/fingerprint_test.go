package fingerprint

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func baseInput() Input {
	return Input{
		OrderID:  uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		BuyerID:  uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Source:   "web",
		Amount:   decimal.RequireFromString("120.50"),
		Currency: "USD",
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	first := Compute(baseInput())
	second := Compute(baseInput())
	if first != second {
		t.Fatalf("expected identical digests, got %q and %q", first, second)
	}
	if !strings.HasPrefix(first, Version+":") {
		t.Fatalf("expected version prefix on %q", first)
	}
}

func TestComputeNormalizesScaleAndCase(t *testing.T) {
	in := baseInput()
	in.Amount = decimal.RequireFromString("120.5")
	in.Currency = "usd"
	in.Source = " Web "

	if got, want := Compute(in), Compute(baseInput()); got != want {
		t.Fatalf("expected normalized inputs to collapse to one digest, got %q and %q", got, want)
	}
}

func TestComputeDiffersPerField(t *testing.T) {
	base := Compute(baseInput())

	altered := baseInput()
	altered.Amount = decimal.RequireFromString("120.51")
	if Compute(altered) == base {
		t.Fatal("expected amount change to alter the digest")
	}

	altered = baseInput()
	altered.OrderID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	if Compute(altered) == base {
		t.Fatal("expected order change to alter the digest")
	}

	altered = baseInput()
	altered.Source = "mobile"
	if Compute(altered) == base {
		t.Fatal("expected source change to alter the digest")
	}
}
