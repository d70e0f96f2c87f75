package cases

import (
	"errors"
	"time"
)

// Kind is the punishment or bookkeeping category of a case.
type Kind string

const (
	KindWarning         Kind = "warning"
	KindTimeout         Kind = "timeout"
	KindMute            Kind = "mute"
	KindUnmute          Kind = "unmute"
	KindBlacklist       Kind = "blacklist"
	KindUnblacklist     Kind = "unblacklist"
	KindGlobalBan       Kind = "global_ban"
	KindGlobalUnban     Kind = "global_unban"
	KindGlobalRoleStrip Kind = "global_rolestripe"
	KindPurge           Kind = "purge"
	KindNote            Kind = "note"
)

// punitiveKinds are subject to TTL pruning; everything else is retained
// indefinitely so reversals (unban, unblacklist) keep their paper trail.
var punitiveKinds = map[Kind]bool{
	KindWarning:         true,
	KindTimeout:         true,
	KindBlacklist:       true,
	KindGlobalBan:       true,
	KindGlobalRoleStrip: true,
	KindPurge:           true,
}

// Punitive reports whether records of this kind expire under pruning.
func (k Kind) Punitive() bool { return punitiveKinds[k] }

// PunitiveKinds lists the kinds subject to TTL pruning, in a stable order,
// for Service implementations that prune in bulk.
func PunitiveKinds() []Kind {
	return []Kind{KindWarning, KindTimeout, KindBlacklist, KindGlobalBan, KindGlobalRoleStrip, KindPurge}
}

// Record is one immutable case ledger entry. CaseID never changes once
// assigned; records are only ever appended or administratively removed.
type Record struct {
	CaseID          string    `json:"caseId"`
	SubjectID       string    `json:"subjectId"`
	SubjectTag      string    `json:"subjectTag,omitempty"`
	Kind            Kind      `json:"kind"`
	ActorID         string    `json:"actorId"`
	ActorTag        string    `json:"actorTag,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds int64     `json:"durationSeconds,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt,omitzero"`
	MessageCount    int       `json:"messageCount,omitempty"`
	OriginalCaseID  string    `json:"originalCaseId,omitempty"`
}

var ErrNotFound = errors.New("cases: not found")
