package cellconv

import "testing"

func TestNumberPlainValue(t *testing.T) {
	result := Number("3000000")
	if !result.Valid {
		t.Fatalf("expected valid result, got reason %q", result.Reason)
	}
	if result.Value != 3000000 {
		t.Fatalf("expected 3000000, got %v", result.Value)
	}
	if result.Fix != FixNone {
		t.Fatalf("expected no fix, got %q", result.Fix)
	}
}

func TestNumberRecordsDistinctFixes(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		fix  FixType
	}{
		{"3,000,000", 3000000, FixThousandsSeparators},
		{"￦3000000", 3000000, FixCurrencySymbol},
		{"3000000원", 3000000, FixCurrencyWord},
		{"₩1,500,000", 1500000, FixCurrencySymbol},
		{" 42000 ", 42000, FixWhitespace},
		{"2500000 KRW", 2500000, FixCurrencyWord},
	}

	for _, tc := range cases {
		result := Number(tc.raw)
		if !result.Valid {
			t.Fatalf("%q: expected valid, got reason %q", tc.raw, result.Reason)
		}
		if result.Value != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.raw, tc.want, result.Value)
		}
		if result.Fix != tc.fix {
			t.Fatalf("%q: expected fix %q, got %q", tc.raw, tc.fix, result.Fix)
		}
	}
}

func TestNumberNegativeAndDecimal(t *testing.T) {
	result := Number("-1,234.56")
	if !result.Valid {
		t.Fatalf("expected valid, got reason %q", result.Reason)
	}
	if result.Value != -1234.56 {
		t.Fatalf("expected -1234.56, got %v", result.Value)
	}
}

func TestNumberPlaceholdersCoerceToZero(t *testing.T) {
	for _, raw := range []string{"-", "N/A", "없음"} {
		result := Number(raw)
		if !result.Valid || result.Value != 0 {
			t.Fatalf("%q: expected zero placeholder, got %+v", raw, result)
		}
		if result.Fix != FixNone {
			t.Fatalf("%q: placeholder should not record a fix", raw)
		}
	}
}

func TestNumberRejectsGarbageWithoutPanic(t *testing.T) {
	cases := []string{"abc", "1,23", "", "12.3.4", "3,000,00"}
	for _, raw := range cases {
		result := Number(raw)
		if result.Valid {
			t.Fatalf("%q: expected invalid result", raw)
		}
		if result.Reason == "" {
			t.Fatalf("%q: invalid result must carry a reason", raw)
		}
	}
}

func TestInt(t *testing.T) {
	if v, ok := Int("1,024"); !ok || v != 1024 {
		t.Fatalf("expected 1024, got %d ok=%v", v, ok)
	}
	if _, ok := Int("10.5"); ok {
		t.Fatalf("fractional value must not coerce to int")
	}
}
