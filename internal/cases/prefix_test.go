package cases

import "testing"

func TestCaseNumberAcceptsExactFormat(t *testing.T) {
	n, ok := caseNumber("CASE", "CASE-0042")
	if !ok || n != 42 {
		t.Fatalf("caseNumber = %d, %v", n, ok)
	}
}

func TestCaseNumberRejectsOtherShapes(t *testing.T) {
	bad := []string{
		"CASE-42",            // too few digits
		"CASE-00042",         // too many digits
		"CASE-0000",          // zero is not a valid number
		"CASE-12ab",          // non-digits
		"PNET-0042",          // wrong prefix
		"CASE-abc123-0042",   // composite fallback shape
		"CASE-guild1-0042-1", // composite fallback shape
		"",
	}
	for _, id := range bad {
		if _, ok := caseNumber("CASE", id); ok {
			t.Fatalf("caseNumber accepted %q", id)
		}
	}
}

func TestSequentialPrefixTable(t *testing.T) {
	prefix, global, ok := sequentialPrefix(KindGlobalBan)
	if !ok || prefix != "PNET" || !global {
		t.Fatalf("global ban numbering: %q global=%v ok=%v", prefix, global, ok)
	}
	prefix, global, ok = sequentialPrefix(KindBlacklist)
	if !ok || prefix != "CASE" || global {
		t.Fatalf("blacklist numbering: %q global=%v ok=%v", prefix, global, ok)
	}
	if _, _, ok := sequentialPrefix(KindWarning); ok {
		t.Fatal("warnings must use composite IDs")
	}
}

func TestFormatCaseID(t *testing.T) {
	if got := formatCaseID("PNET", 7); got != "PNET-0007" {
		t.Fatalf("formatCaseID = %q", got)
	}
	if got := formatCaseID("CASE", 999); got != "CASE-0999" {
		t.Fatalf("formatCaseID = %q", got)
	}
}
