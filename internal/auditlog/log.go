package auditlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
)

// fetchWindow bounds how far back state derivation scans. Records older than
// this are historical only; the newest matching record is authoritative.
const fetchWindow = 100

// Log publishes review records and edits affordances on records it
// previously published. It never touches messages it did not create.
type Log struct {
	client   platform.Client
	channels map[WorkflowKind]string
}

// New builds a Log. Kinds absent from channels are unconfigured; publishing
// for them is silently skipped so auditability never blocks the underlying
// action.
func New(client platform.Client, channels map[WorkflowKind]string) *Log {
	copied := make(map[WorkflowKind]string, len(channels))
	for k, v := range channels {
		copied[k] = v
	}
	return &Log{client: client, channels: copied}
}

// ChannelMap builds the kind-to-channel mapping from the two configured log
// channels. Reversal records share the channel of the action they reverse.
func ChannelMap(globalBanLogs, blacklistLogs string) map[WorkflowKind]string {
	return map[WorkflowKind]string{
		WorkflowGlobalBan:   globalBanLogs,
		WorkflowGlobalUnban: globalBanLogs,
		WorkflowBlacklist:   blacklistLogs,
		WorkflowUnblacklist: blacklistLogs,
	}
}

// Enabled reports whether records of the kind have a configured channel.
func (l *Log) Enabled(kind WorkflowKind) bool { return l.channels[kind] != "" }

// Publish posts the record and seeds its proof thread with a mention of the
// acting staff member. With no channel configured the record is skipped and
// a zero Handle returned.
func (l *Log) Publish(ctx context.Context, e Entry) (Handle, error) {
	channelID := l.channels[e.Kind]
	if channelID == "" {
		obs.AuditRecord("skipped")
		return Handle{}, nil
	}

	buttons := []platform.Button{
		{ID: AffApprove, Label: "Approve"},
		{ID: AffDeny, Label: "Deny"},
	}
	if !reviewOnly[e.Kind] {
		buttons = append(buttons,
			platform.Button{ID: AffEscalate, Label: "Escalate"},
			platform.Button{ID: AffRemind, Label: "Remind"},
		)
	}

	msg, err := l.client.PostMessage(ctx, channelID, platform.Message{
		Title: titles[e.Kind],
		Body:  e.SubjectTag,
		Fields: []platform.Field{
			{Name: FieldSubjectID, Value: e.SubjectID},
			{Name: FieldActorID, Value: e.ActorID},
			{Name: FieldReason, Value: e.Reason},
			{Name: FieldCaseID, Value: e.CaseID},
		},
		Buttons: buttons,
	})
	if err != nil {
		obs.AuditRecord("failed")
		return Handle{}, fmt.Errorf("auditlog: publish %s record: %w", e.Kind, err)
	}

	h := Handle{ChannelID: channelID, MessageID: msg.ID}
	threadID, err := l.client.StartThread(ctx, channelID, msg.ID, "Proof Request - "+e.SubjectID)
	if err != nil {
		// The record stands without its thread; proof collection is optional.
		obs.Error("auditlog: start proof thread", err, map[string]any{"message": msg.ID})
	} else {
		h.ThreadID = threadID
		seed := fmt.Sprintf("<@%s> please attach proof for this action.", e.ActorID)
		if err := l.client.PostThreadMessage(ctx, threadID, seed); err != nil {
			obs.Error("auditlog: seed proof thread", err, map[string]any{"thread": threadID})
		}
	}
	obs.AuditRecord("published")
	return h, nil
}

// DeriveState scans the recent window of the kind's channel for the newest
// record matching the subject and reads the escalation gate off its
// affordances. Derivation always hits the live log; the result must not be
// cached across an authorization decision.
func (l *Log) DeriveState(ctx context.Context, kind WorkflowKind, subjectID string) (State, error) {
	channelID := l.channels[kind]
	if channelID == "" {
		return State{}, nil
	}
	msgs, err := l.client.RecentMessages(ctx, channelID, fetchWindow)
	if err != nil {
		return State{}, fmt.Errorf("auditlog: scan %s records: %w", kind, err)
	}
	// Newest first; the first match wins and older records are ignored.
	for _, m := range msgs {
		if m.Title != titles[kind] || m.Fieldv(FieldSubjectID) != subjectID {
			continue
		}
		st := State{
			Found:   true,
			Handle:  Handle{ChannelID: channelID, MessageID: m.ID, ThreadID: m.ThreadID},
			ActorID: m.Fieldv(FieldActorID),
		}
		for _, b := range m.Buttons {
			if b.ID == AffEscalate && b.Disabled && strings.HasPrefix(b.Label, LabelEscalatedBy) {
				st.Escalated = true
			}
		}
		return st, nil
	}
	return State{}, nil
}

// affordanceLabel maps a consumed affordance to its rewritten label.
func affordanceLabel(affordance, actorTag string) string {
	switch affordance {
	case AffApprove:
		return labelApprovedBy + actorTag
	case AffDeny:
		return labelDeniedBy + actorTag
	case AffEscalate:
		return LabelEscalatedBy + actorTag
	case AffRemind:
		return labelRemindedBy + actorTag
	}
	return actorTag
}

// Transition disables the named affordance and rewrites its label with the
// acting staff member's identity. Other affordances are untouched.
// Re-applying an already-applied transition is a no-op.
func (l *Log) Transition(ctx context.Context, h Handle, affordance, actorTag string) error {
	msg, err := l.findMessage(ctx, h)
	if err != nil {
		return err
	}
	label := affordanceLabel(affordance, actorTag)
	buttons := append([]platform.Button(nil), msg.Buttons...)
	changed := false
	for i, b := range buttons {
		if b.ID != affordance {
			continue
		}
		if b.Disabled && b.Label == label {
			return nil
		}
		buttons[i].Disabled = true
		buttons[i].Label = label
		changed = true
	}
	if !changed {
		return nil
	}
	if err := l.client.EditMessageButtons(ctx, h.ChannelID, h.MessageID, buttons); err != nil {
		return fmt.Errorf("auditlog: transition %s: %w", affordance, err)
	}
	obs.AuditRecord(affordance)
	return nil
}

// ClearEscalation restores the escalate affordance to its initial state.
// Used when a newer record supersedes an escalated one and the old gate
// should no longer read as live.
func (l *Log) ClearEscalation(ctx context.Context, h Handle) error {
	msg, err := l.findMessage(ctx, h)
	if err != nil {
		return err
	}
	buttons := append([]platform.Button(nil), msg.Buttons...)
	changed := false
	for i, b := range buttons {
		if b.ID == AffEscalate && (b.Disabled || b.Label != "Escalate") {
			buttons[i].Disabled = false
			buttons[i].Label = "Escalate"
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.client.EditMessageButtons(ctx, h.ChannelID, h.MessageID, buttons)
}

// Remind consumes the remind affordance and pings the original actor in the
// record's proof thread, recreating the thread when the platform lost it.
func (l *Log) Remind(ctx context.Context, h Handle, actorTag, originalActorID, subjectID string) error {
	if err := l.Transition(ctx, h, AffRemind, actorTag); err != nil {
		return err
	}
	if h.ThreadID == "" {
		// The platform lost the proof thread; recreate it for the reminder.
		threadID, err := l.client.StartThread(ctx, h.ChannelID, h.MessageID, "Proof Request - "+subjectID)
		if err != nil {
			obs.Error("auditlog: recreate proof thread", err, map[string]any{"message": h.MessageID})
			return nil
		}
		h.ThreadID = threadID
	}
	note := fmt.Sprintf("<@%s> reminder: this action is still awaiting proof.", originalActorID)
	if err := l.client.PostThreadMessage(ctx, h.ThreadID, note); err != nil {
		return fmt.Errorf("auditlog: post reminder: %w", err)
	}
	return nil
}

func (l *Log) findMessage(ctx context.Context, h Handle) (platform.Message, error) {
	msgs, err := l.client.RecentMessages(ctx, h.ChannelID, fetchWindow)
	if err != nil {
		return platform.Message{}, fmt.Errorf("auditlog: fetch record: %w", err)
	}
	for _, m := range msgs {
		if m.ID == h.MessageID {
			return m, nil
		}
	}
	return platform.Message{}, ErrNotPublished
}
