// Package auditlog publishes moderation review records to the platform's
// audit channels and derives workflow state back out of them. The posted
// history is the durable state; nothing about a review is cached locally, so
// the visible log can never desynchronize from what the bot believes.
package auditlog

import "errors"

// WorkflowKind selects the review workflow a record belongs to.
type WorkflowKind string

const (
	WorkflowGlobalBan   WorkflowKind = "global_ban"
	WorkflowGlobalUnban WorkflowKind = "global_unban"
	WorkflowBlacklist   WorkflowKind = "blacklist"
	WorkflowUnblacklist WorkflowKind = "unblacklist"
)

// Affordance IDs on a posted record. These are stable identifiers; the
// labels on them change as the workflow progresses.
const (
	AffApprove  = "approve"
	AffDeny     = "deny"
	AffEscalate = "escalate"
	AffRemind   = "remind"
)

// Label prefixes written when an affordance is consumed. DeriveState matches
// on these, so they are part of the persisted format, not cosmetics.
const (
	labelApprovedBy  = "Approved by "
	labelDeniedBy    = "Denied by "
	LabelEscalatedBy = "Escalated by "
	labelRemindedBy  = "Reminded by "
)

// Embed field names records are keyed by when scanned back.
const (
	FieldSubjectID = "User Id"
	FieldActorID   = "Staff Member ID"
	FieldReason    = "Reason"
	FieldCaseID    = "Case ID"
)

// titles per workflow kind.
var titles = map[WorkflowKind]string{
	WorkflowGlobalBan:   "Global Ban Issued",
	WorkflowGlobalUnban: "Global Unban Requested",
	WorkflowBlacklist:   "User Blacklisted",
	WorkflowUnblacklist: "User Unblacklisted",
}

// reviewOnly marks the kinds whose records carry only approve and deny.
// Reversal requests have nothing to escalate and nobody to remind.
var reviewOnly = map[WorkflowKind]bool{
	WorkflowGlobalUnban: true,
	WorkflowUnblacklist: true,
}

// Entry is the material published for one moderation action.
type Entry struct {
	Kind       WorkflowKind
	ScopeID    string
	SubjectID  string
	SubjectTag string
	ActorID    string
	ActorTag   string
	Reason     string
	CaseID     string
}

// Handle locates a published record on the platform.
type Handle struct {
	ChannelID string
	MessageID string
	ThreadID  string
}

// State is the derived workflow state for a subject within one kind.
// ActorID is the staff member who originally published the record.
type State struct {
	Found     bool
	Escalated bool
	Handle    Handle
	ActorID   string
}

// ErrNotPublished reports that the record for an operation could not be
// located in the audit channel's recent history.
var ErrNotPublished = errors.New("auditlog: record not found")
