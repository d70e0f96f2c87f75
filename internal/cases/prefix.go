package cases

import (
	"fmt"
	"strings"
)

// Sequential numbers at or above this value are legacy artifacts from an old
// ID format; allocation ignores them entirely.
const maxSequential = 1000

// numbering describes how a kind allocates case IDs.
type numbering struct {
	prefix string
	global bool // numbered across all scopes rather than per scope
}

// kindNumbering is the single source of truth coupling kinds to prefixes.
// Kinds absent from the table fall back to composite IDs.
var kindNumbering = map[Kind]numbering{
	KindGlobalBan:   {prefix: "PNET", global: true},
	KindGlobalUnban: {prefix: "PNET", global: true},
	KindBlacklist:   {prefix: "CASE"},
	KindUnblacklist: {prefix: "CASE"},
}

// sequentialPrefix returns the ID prefix for a kind and whether its counter
// spans all scopes. ok is false for kinds that use composite IDs.
func sequentialPrefix(kind Kind) (prefix string, global, ok bool) {
	n, ok := kindNumbering[kind]
	return n.prefix, n.global, ok
}

// AllocationRule exposes the numbering rule for alternative Service
// implementations that allocate IDs themselves.
func AllocationRule(kind Kind) (prefix string, global, ok bool) {
	return sequentialPrefix(kind)
}

// FormatCaseID renders a sequential case ID as PREFIX-dddd.
func FormatCaseID(prefix string, n int) string { return formatCaseID(prefix, n) }

// formatCaseID renders a sequential case ID as PREFIX-dddd.
func formatCaseID(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// caseNumber extracts the sequential number from an ID of the exact form
// PREFIX-dddd. Any other shape, including longer digit runs or stray
// characters, is rejected.
func caseNumber(prefix, caseID string) (int, bool) {
	rest, ok := strings.CutPrefix(caseID, prefix+"-")
	if !ok || len(rest) != 4 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}
