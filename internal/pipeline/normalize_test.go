package pipeline

import "testing"

func TestNormalizeSentinels(t *testing.T) {
	for _, raw := range []string{"NIL", "Nil", "nill", "NULL", "NA", "n/a", "N/A", "-", "", "   ", " - ", "\u200b"} {
		if f := Normalize(raw, true); !f.IsAbsent() {
			t.Fatalf("Normalize(%q) = %q, want absent", raw, f.Or("<absent>"))
		}
	}
}

func TestNormalizeMissingColumn(t *testing.T) {
	if f := Normalize("Sample", false); !f.IsAbsent() {
		t.Fatalf("missing column should be absent")
	}
}

func TestNormalizeCleans(t *testing.T) {
	f := Normalize("  Sample    Trust ", true)
	v, ok := f.Value()
	if !ok || v != "Sample Trust" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
	// Sentinel words inside a real value are kept.
	if got := Normalize("Nil Batte Sannata Club", true).Or(""); got != "Nil Batte Sannata Club" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeCount(t *testing.T) {
	if got := NormalizeCount(Normalize("1,200", true)); got != 1200 {
		t.Fatalf("got %d", got)
	}
	if got := NormalizeCount(Normalize("Nil", true)); got != 0 {
		t.Fatalf("got %d", got)
	}
	if got := NormalizeCount(Normalize("lots", true)); got != 0 {
		t.Fatalf("got %d", got)
	}
}

func TestFieldPtr(t *testing.T) {
	if Absent().Ptr() != nil {
		t.Fatal("absent ptr should be nil")
	}
	if p := Present("x").Ptr(); p == nil || *p != "x" {
		t.Fatal("present ptr")
	}
}
