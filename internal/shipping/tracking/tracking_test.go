package tracking

import (
	"strings"
	"testing"
)

func TestGenerateProducesValidNumbers(t *testing.T) {
	t.Parallel()

	for _, carrier := range []string{"postnord", "dhl", "bring", "budbee", "instabox", "fedex"} {
		number, err := Generate(carrier)
		if err != nil {
			t.Fatalf("generate for %s: %v", carrier, err)
		}
		if !Validate(number) {
			t.Fatalf("generated number %q fails its own checksum", number)
		}
	}
}

func TestGenerateUsesCarrierPrefix(t *testing.T) {
	t.Parallel()

	number, err := Generate("postnord")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(number, "PN") {
		t.Fatalf("expected PN prefix, got %q", number)
	}

	number, err = Generate("fedex")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(number, "FE") {
		t.Fatalf("expected fallback FE prefix, got %q", number)
	}
}

func TestGenerateIsCollisionResistant(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		number, err := Generate("dhl")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate tracking number %q", number)
		}
		seen[number] = struct{}{}
	}
}

func TestValidateRejectsTamperedNumbers(t *testing.T) {
	t.Parallel()

	number, err := Generate("dhl")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// flip one character in the body
	tampered := []byte(number)
	if tampered[3] == 'A' {
		tampered[3] = 'B'
	} else {
		tampered[3] = 'A'
	}
	if Validate(string(tampered)) {
		t.Fatalf("tampered number %q validated", tampered)
	}

	if Validate("") || Validate("X1") {
		t.Fatal("degenerate inputs must not validate")
	}
}

func TestGenerateRejectsBadCarrier(t *testing.T) {
	t.Parallel()

	if _, err := Generate(""); err == nil {
		t.Fatal("expected error for empty carrier")
	}
	if _, err := Generate("x"); err == nil {
		t.Fatal("expected error for one-letter carrier")
	}
}
