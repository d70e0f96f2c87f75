// Package moderation orchestrates the bookkeeping core: it applies platform
// side effects, appends ledger records, keeps role backups and temp role
// grants, and drives the review workflow published to the audit channels.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/audit"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auditlog"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auth"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/cases"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/dedup"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/guildconfig"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/rolebackup"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/stream"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/temprole"
)

// GlobalScope keys ledger records for network-wide actions, which are not
// owned by any single guild.
const GlobalScope = "global"

// ErrNoBackup reports a restore attempt with no live role snapshot.
var ErrNoBackup = errors.New("moderation: no role backup")

// Deps wires the service. Events and Limiter are optional.
type Deps struct {
	Client    platform.Client
	Ledger    cases.Service
	Backups   *rolebackup.Store
	TempRoles *temprole.Store
	AuditLog  *auditlog.Log
	Config    guildconfig.Config
	Checker   auth.Checker
	Events    *stream.Stream
	Limiter   *rate.Limiter
}

type Service struct {
	client  platform.Client
	ledger  cases.Service
	backups *rolebackup.Store
	temp    *temprole.Store
	log     *auditlog.Log
	cfg     guildconfig.Config
	checker auth.Checker
	events  *stream.Stream
	limiter *rate.Limiter
	dedupe  *dedup.Window
}

func New(d Deps) *Service {
	limiter := d.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Service{
		client:  d.Client,
		ledger:  d.Ledger,
		backups: d.Backups,
		temp:    d.TempRoles,
		log:     d.AuditLog,
		cfg:     d.Config,
		checker: d.Checker,
		events:  d.Events,
		limiter: limiter,
		dedupe:  dedup.New(dedup.DefaultWindow),
	}
}

func (s *Service) emit(evt stream.Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}

// notify DMs the subject when the deployment opts in. Delivery is best
// effort; closed DMs are common and never fail the action.
func (s *Service) notify(ctx context.Context, subjectID, content string) {
	if !s.cfg.Settings.SendDMs {
		return
	}
	if err := s.client.SendDM(ctx, subjectID, content); err != nil {
		obs.Info("moderation: dm not delivered", map[string]any{"subject": subjectID})
	}
}

// logAction posts a plain summary line to the scope's own log channel when
// the deployment logs all actions.
func (s *Service) logAction(ctx context.Context, scopeID, summary string) {
	if !s.cfg.Settings.LogAllActions {
		return
	}
	channelID := s.cfg.ScopeLog(scopeID)
	if channelID == "" {
		return
	}
	if _, err := s.client.PostMessage(ctx, channelID, platform.Message{Body: summary}); err != nil {
		obs.Error("moderation: post scope log", err, map[string]any{"scope": scopeID})
	}
}

// publishRecord posts the review record for an action. If the subject's
// previous record of the same kind is still escalated, the old gate is
// cleared first so only the new record is authoritative.
func (s *Service) publishRecord(ctx context.Context, e auditlog.Entry) auditlog.Handle {
	if st, err := s.log.DeriveState(ctx, e.Kind, e.SubjectID); err == nil && st.Found && st.Escalated {
		if err := s.log.ClearEscalation(ctx, st.Handle); err != nil {
			obs.Error("moderation: clear superseded escalation", err, map[string]any{"subject": e.SubjectID})
		}
	}
	h, err := s.log.Publish(ctx, e)
	if err != nil {
		obs.Error("moderation: publish review record", err, map[string]any{"subject": e.SubjectID, "kind": string(e.Kind)})
	}
	return h
}

// GlobalBan bans the subject in every guild the bot serves, appends a
// network-scoped ledger record and publishes a review record. Guilds where
// the subject cannot be banned are reported, never fatal.
func (s *Service) GlobalBan(ctx context.Context, actor auth.Actor, subjectID, subjectTag, reason string) (cases.Record, BatchResult, error) {
	if err := s.checker.Require(actor, auth.PermGlobalBan); err != nil {
		return cases.Record{}, BatchResult{}, err
	}
	guilds, err := s.client.Guilds(ctx)
	if err != nil {
		return cases.Record{}, BatchResult{}, fmt.Errorf("moderation: enumerate guilds: %w", err)
	}

	s.notify(ctx, subjectID, "You have been banned from all network servers. Reason: "+reason)
	res := s.fanOut(ctx, guilds, func(ctx context.Context, g platform.Guild) error {
		if _, err := s.client.Ban(ctx, g.ID, subjectID); err == nil {
			return errTargetSkipped
		}
		return s.client.CreateBan(ctx, g.ID, subjectID, reason)
	})

	rec, err := s.ledger.Append(ctx, GlobalScope, cases.Record{
		SubjectID:  subjectID,
		SubjectTag: subjectTag,
		Kind:       cases.KindGlobalBan,
		ActorID:    actor.ID,
		ActorTag:   actor.Tag,
		Reason:     reason,
	})
	if err != nil {
		return cases.Record{}, res, fmt.Errorf("moderation: append global ban case: %w", err)
	}

	s.publishRecord(ctx, auditlog.Entry{
		Kind:       auditlog.WorkflowGlobalBan,
		ScopeID:    GlobalScope,
		SubjectID:  subjectID,
		SubjectTag: subjectTag,
		ActorID:    actor.ID,
		ActorTag:   actor.Tag,
		Reason:     reason,
		CaseID:     rec.CaseID,
	})
	s.emit(stream.Event{Type: stream.TypeCaseAppended, ScopeID: GlobalScope, SubjectID: subjectID, CaseID: rec.CaseID, ActorTag: actor.Tag})
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.global_ban", map[string]any{
		"subject": subjectID, "case": rec.CaseID,
		"succeeded": res.Succeeded(), "skipped": res.Skipped(), "failed": res.Failed(),
	})
	return rec, res, nil
}

// GlobalUnban lifts a network ban in every guild. Guilds with no ban on
// record for the subject are skipped.
func (s *Service) GlobalUnban(ctx context.Context, actor auth.Actor, subjectID, reason string) (cases.Record, BatchResult, error) {
	if err := s.checker.Require(actor, auth.PermGlobalBan); err != nil {
		return cases.Record{}, BatchResult{}, err
	}
	if err := s.requireNotEscalated(ctx, actor, auditlog.WorkflowGlobalBan, subjectID); err != nil {
		return cases.Record{}, BatchResult{}, err
	}
	guilds, err := s.client.Guilds(ctx)
	if err != nil {
		return cases.Record{}, BatchResult{}, fmt.Errorf("moderation: enumerate guilds: %w", err)
	}
	res := s.fanOut(ctx, guilds, func(ctx context.Context, g platform.Guild) error {
		return s.client.RemoveBan(ctx, g.ID, subjectID, reason)
	})

	rec, err := s.appendReversal(ctx, actor, GlobalScope, subjectID, reason, cases.KindGlobalUnban, cases.KindGlobalBan)
	if err != nil {
		return cases.Record{}, res, err
	}
	s.publishRecord(ctx, auditlog.Entry{
		Kind:      auditlog.WorkflowGlobalUnban,
		ScopeID:   GlobalScope,
		SubjectID: subjectID,
		ActorID:   actor.ID,
		ActorTag:  actor.Tag,
		Reason:    reason,
		CaseID:    rec.CaseID,
	})
	s.emit(stream.Event{Type: stream.TypeCaseAppended, ScopeID: GlobalScope, SubjectID: subjectID, CaseID: rec.CaseID, ActorTag: actor.Tag})
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.global_unban", map[string]any{
		"subject": subjectID, "case": rec.CaseID,
		"succeeded": res.Succeeded(), "skipped": res.Skipped(), "failed": res.Failed(),
	})
	return rec, res, nil
}

// GlobalTimeout times the subject out in every guild until the deadline and
// records a network case. Guilds the subject is not a member of are skipped.
func (s *Service) GlobalTimeout(ctx context.Context, actor auth.Actor, subjectID, subjectTag, reason string, d time.Duration) (cases.Record, BatchResult, error) {
	if err := s.checker.Require(actor, auth.PermGlobalBan); err != nil {
		return cases.Record{}, BatchResult{}, err
	}
	guilds, err := s.client.Guilds(ctx)
	if err != nil {
		return cases.Record{}, BatchResult{}, fmt.Errorf("moderation: enumerate guilds: %w", err)
	}
	until := time.Now().Add(d)
	s.notify(ctx, subjectID, "You have been timed out on all network servers. Reason: "+reason)
	res := s.fanOut(ctx, guilds, func(ctx context.Context, g platform.Guild) error {
		return s.client.Timeout(ctx, g.ID, subjectID, until, reason)
	})

	rec, err := s.ledger.Append(ctx, GlobalScope, cases.Record{
		SubjectID:       subjectID,
		SubjectTag:      subjectTag,
		Kind:            cases.KindTimeout,
		ActorID:         actor.ID,
		ActorTag:        actor.Tag,
		Reason:          reason,
		DurationSeconds: int64(d.Seconds()),
		ExpiresAt:       until,
	})
	if err != nil {
		return cases.Record{}, res, fmt.Errorf("moderation: append timeout case: %w", err)
	}
	s.emit(stream.Event{Type: stream.TypeCaseAppended, ScopeID: GlobalScope, SubjectID: subjectID, CaseID: rec.CaseID, ActorTag: actor.Tag})
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.global_timeout", map[string]any{
		"subject": subjectID, "case": rec.CaseID,
		"succeeded": res.Succeeded(), "skipped": res.Skipped(), "failed": res.Failed(),
	})
	return rec, res, nil
}

// appendReversal records a reversal entry linked to the newest record of the
// reversed kind, if one survives in the ledger.
func (s *Service) appendReversal(ctx context.Context, actor auth.Actor, scopeID, subjectID, reason string, kind, reversed cases.Kind) (cases.Record, error) {
	rec := cases.Record{
		SubjectID: subjectID,
		Kind:      kind,
		ActorID:   actor.ID,
		ActorTag:  actor.Tag,
		Reason:    reason,
	}
	if orig, err := s.ledger.LatestBySubjectKind(ctx, subjectID, reversed); err == nil {
		rec.OriginalCaseID = orig.CaseID
	}
	out, err := s.ledger.Append(ctx, scopeID, rec)
	if err != nil {
		return cases.Record{}, fmt.Errorf("moderation: append %s case: %w", kind, err)
	}
	return out, nil
}

// Blacklist snapshots the member's roles, strips them, applies the
// configured blacklist role and records the case.
func (s *Service) Blacklist(ctx context.Context, actor auth.Actor, scopeID, subjectID, reason string) (cases.Record, error) {
	if err := s.checker.Require(actor, auth.PermBlacklist); err != nil {
		return cases.Record{}, err
	}
	member, err := s.applyBlacklist(ctx, scopeID, subjectID, reason)
	if err != nil {
		return cases.Record{}, err
	}

	rec, err := s.ledger.Append(ctx, scopeID, cases.Record{
		SubjectID:  subjectID,
		SubjectTag: member.User.Tag,
		Kind:       cases.KindBlacklist,
		ActorID:    actor.ID,
		ActorTag:   actor.Tag,
		Reason:     reason,
	})
	if err != nil {
		return cases.Record{}, fmt.Errorf("moderation: append blacklist case: %w", err)
	}

	s.notify(ctx, subjectID, "You have been blacklisted. Reason: "+reason)
	s.publishRecord(ctx, auditlog.Entry{
		Kind:       auditlog.WorkflowBlacklist,
		ScopeID:    scopeID,
		SubjectID:  subjectID,
		SubjectTag: member.User.Tag,
		ActorID:    actor.ID,
		ActorTag:   actor.Tag,
		Reason:     reason,
		CaseID:     rec.CaseID,
	})
	s.emit(stream.Event{Type: stream.TypeCaseAppended, ScopeID: scopeID, SubjectID: subjectID, CaseID: rec.CaseID, ActorTag: actor.Tag})
	s.logAction(ctx, scopeID, fmt.Sprintf("%s blacklisted %s (%s)", actor.Tag, subjectID, rec.CaseID))
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.blacklist", map[string]any{"scope": scopeID, "subject": subjectID, "case": rec.CaseID})
	return rec, nil
}

// Unblacklist removes the blacklist role, restores the member's backed-up
// roles and records the reversal.
func (s *Service) Unblacklist(ctx context.Context, actor auth.Actor, scopeID, subjectID, reason string) (cases.Record, error) {
	if err := s.checker.Require(actor, auth.PermBlacklist); err != nil {
		return cases.Record{}, err
	}
	if err := s.requireNotEscalated(ctx, actor, auditlog.WorkflowBlacklist, subjectID); err != nil {
		return cases.Record{}, err
	}
	if err := s.reverseBlacklist(ctx, scopeID, subjectID, reason); err != nil {
		return cases.Record{}, err
	}
	rec, err := s.appendReversal(ctx, actor, scopeID, subjectID, reason, cases.KindUnblacklist, cases.KindBlacklist)
	if err != nil {
		return cases.Record{}, err
	}
	// A stale escalation on the blacklist record must not gate future cases
	// once the blacklist itself is lifted.
	if st, err := s.log.DeriveState(ctx, auditlog.WorkflowBlacklist, subjectID); err == nil && st.Found && st.Escalated {
		if err := s.log.ClearEscalation(ctx, st.Handle); err != nil {
			obs.Error("moderation: clear lifted escalation", err, map[string]any{"subject": subjectID})
		}
	}
	s.publishRecord(ctx, auditlog.Entry{
		Kind:      auditlog.WorkflowUnblacklist,
		ScopeID:   scopeID,
		SubjectID: subjectID,
		ActorID:   actor.ID,
		ActorTag:  actor.Tag,
		Reason:    reason,
		CaseID:    rec.CaseID,
	})
	s.emit(stream.Event{Type: stream.TypeCaseAppended, ScopeID: scopeID, SubjectID: subjectID, CaseID: rec.CaseID, ActorTag: actor.Tag})
	s.logAction(ctx, scopeID, fmt.Sprintf("%s unblacklisted %s (%s)", actor.Tag, subjectID, rec.CaseID))
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.unblacklist", map[string]any{"scope": scopeID, "subject": subjectID, "case": rec.CaseID})
	return rec, nil
}

// applyBlacklist performs the platform side of a blacklist: snapshot the
// member's roles, strip them and apply the blacklist role.
func (s *Service) applyBlacklist(ctx context.Context, scopeID, subjectID, reason string) (platform.Member, error) {
	member, err := s.client.Member(ctx, scopeID, subjectID)
	if err != nil {
		return platform.Member{}, fmt.Errorf("moderation: resolve member: %w", err)
	}
	if _, err := s.backups.Save(ctx, scopeID, subjectID, member.RoleIDs); err != nil {
		return platform.Member{}, fmt.Errorf("moderation: save role backup: %w", err)
	}
	for _, roleID := range member.RoleIDs {
		if err := s.client.RemoveRole(ctx, scopeID, subjectID, roleID, "Blacklisted: "+reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
			obs.Error("moderation: strip role", err, map[string]any{"scope": scopeID, "subject": subjectID, "role": roleID})
		}
	}
	if s.cfg.Roles.Blacklist != "" {
		if err := s.client.AddRole(ctx, scopeID, subjectID, s.cfg.Roles.Blacklist, "Blacklisted: "+reason); err != nil {
			return platform.Member{}, fmt.Errorf("moderation: apply blacklist role: %w", err)
		}
	}
	return member, nil
}

// reverseBlacklist undoes the platform side of a blacklist: drop the
// blacklist role and put the snapshot roles back. Roles that no longer
// exist are skipped.
func (s *Service) reverseBlacklist(ctx context.Context, scopeID, subjectID, reason string) error {
	if s.cfg.Roles.Blacklist != "" {
		if err := s.client.RemoveRole(ctx, scopeID, subjectID, s.cfg.Roles.Blacklist, "Unblacklisted: "+reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
			return fmt.Errorf("moderation: remove blacklist role: %w", err)
		}
	}
	roles, err := s.backups.Get(ctx, scopeID, subjectID)
	if err != nil {
		return fmt.Errorf("moderation: read role backup: %w", err)
	}
	for _, roleID := range roles {
		if err := s.client.AddRole(ctx, scopeID, subjectID, roleID, "Unblacklisted: "+reason); err != nil && !errors.Is(err, platform.ErrNotFound) {
			obs.Error("moderation: restore role", err, map[string]any{"scope": scopeID, "subject": subjectID, "role": roleID})
		}
	}
	return nil
}

// executorPerm maps a workflow kind to the permission that executes the
// underlying action. Escalation is an executor move; the review affordances
// (approve, deny, remind) are gated by the approver permission for every
// kind.
func executorPerm(kind auditlog.WorkflowKind) string {
	switch kind {
	case auditlog.WorkflowGlobalBan, auditlog.WorkflowGlobalUnban:
		return auth.PermGlobalBan
	default:
		return auth.PermBlacklist
	}
}

// requireNotEscalated blocks reversal of an escalated record by anyone
// without the ownership capability. State is derived at call time, never
// cached.
func (s *Service) requireNotEscalated(ctx context.Context, actor auth.Actor, kind auditlog.WorkflowKind, subjectID string) error {
	st, err := s.log.DeriveState(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if st.Found && st.Escalated && !s.checker.Allow(actor, auth.PermOwnership) {
		return auth.ErrEscalated
	}
	return nil
}

// state re-derives the workflow state for the subject. Derivation is done at
// the moment of the decision, never cached; a stale escalation check would
// let a non-owner reverse an escalated action.
func (s *Service) state(ctx context.Context, kind auditlog.WorkflowKind, subjectID string) (auditlog.State, error) {
	st, err := s.log.DeriveState(ctx, kind, subjectID)
	if err != nil {
		return auditlog.State{}, err
	}
	if !st.Found {
		return auditlog.State{}, auditlog.ErrNotPublished
	}
	return st, nil
}

// Approve consumes the approve affordance on the subject's newest record.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, kind auditlog.WorkflowKind, subjectID string) error {
	if err := s.checker.Require(actor, auth.PermApproveGlobalBan); err != nil {
		return err
	}
	st, err := s.state(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if err := s.log.Transition(ctx, st.Handle, auditlog.AffApprove, actor.Tag); err != nil {
		return err
	}
	s.emit(stream.Event{Type: stream.TypeWorkflow, SubjectID: subjectID, ActorTag: actor.Tag, Detail: "approved"})
	return audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.approve", map[string]any{"subject": subjectID, "kind": string(kind)})
}

// Deny consumes the deny affordance and reverses the underlying action. An
// escalated record may only be denied by an actor with the ownership
// capability. scopeID names the guild whose action is reversed; it is
// ignored for network-wide kinds.
func (s *Service) Deny(ctx context.Context, actor auth.Actor, kind auditlog.WorkflowKind, scopeID, subjectID, reason string) error {
	st, err := s.state(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if st.Escalated {
		if !s.checker.Allow(actor, auth.PermOwnership) {
			return auth.ErrEscalated
		}
	} else if err := s.checker.Require(actor, auth.PermApproveGlobalBan); err != nil {
		return err
	}
	if err := s.log.Transition(ctx, st.Handle, auditlog.AffDeny, actor.Tag); err != nil {
		return err
	}

	switch kind {
	case auditlog.WorkflowGlobalBan:
		guilds, err := s.client.Guilds(ctx)
		if err != nil {
			return fmt.Errorf("moderation: enumerate guilds: %w", err)
		}
		s.fanOut(ctx, guilds, func(ctx context.Context, g platform.Guild) error {
			return s.client.RemoveBan(ctx, g.ID, subjectID, "Global ban denied: "+reason)
		})
		if _, err := s.appendReversal(ctx, actor, GlobalScope, subjectID, "Global ban denied: "+reason, cases.KindGlobalUnban, cases.KindGlobalBan); err != nil {
			return err
		}
	case auditlog.WorkflowBlacklist:
		if err := s.reverseBlacklist(ctx, scopeID, subjectID, "Blacklist denied: "+reason); err != nil {
			return err
		}
		if _, err := s.appendReversal(ctx, actor, scopeID, subjectID, "Blacklist denied: "+reason, cases.KindUnblacklist, cases.KindBlacklist); err != nil {
			return err
		}
	case auditlog.WorkflowGlobalUnban:
		// Denying an unban request puts the ban back network-wide.
		guilds, err := s.client.Guilds(ctx)
		if err != nil {
			return fmt.Errorf("moderation: enumerate guilds: %w", err)
		}
		s.fanOut(ctx, guilds, func(ctx context.Context, g platform.Guild) error {
			return s.client.CreateBan(ctx, g.ID, subjectID, "Unban denied: "+reason)
		})
		if _, err := s.appendReversal(ctx, actor, GlobalScope, subjectID, "Unban denied: "+reason, cases.KindGlobalBan, cases.KindGlobalUnban); err != nil {
			return err
		}
	case auditlog.WorkflowUnblacklist:
		// Denying an unblacklist request re-applies the blacklist.
		if _, err := s.applyBlacklist(ctx, scopeID, subjectID, "Unblacklist denied: "+reason); err != nil {
			return err
		}
		if _, err := s.appendReversal(ctx, actor, scopeID, subjectID, "Unblacklist denied: "+reason, cases.KindBlacklist, cases.KindUnblacklist); err != nil {
			return err
		}
	}

	s.emit(stream.Event{Type: stream.TypeWorkflow, SubjectID: subjectID, ActorTag: actor.Tag, Detail: "denied"})
	return audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.deny", map[string]any{"subject": subjectID, "kind": string(kind)})
}

// Escalate consumes the escalate affordance, gating further denial to
// ownership. Escalating takes the executor permission for the kind, not the
// approver one; the staff who can issue an action can also flag it.
func (s *Service) Escalate(ctx context.Context, actor auth.Actor, kind auditlog.WorkflowKind, subjectID string) error {
	if err := s.checker.Require(actor, executorPerm(kind)); err != nil {
		return err
	}
	st, err := s.state(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if err := s.log.Transition(ctx, st.Handle, auditlog.AffEscalate, actor.Tag); err != nil {
		return err
	}
	s.emit(stream.Event{Type: stream.TypeWorkflow, SubjectID: subjectID, ActorTag: actor.Tag, Detail: "escalated"})
	return audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.escalate", map[string]any{"subject": subjectID, "kind": string(kind)})
}

// Remind consumes the remind affordance and pings the original actor in the
// record's proof thread.
func (s *Service) Remind(ctx context.Context, actor auth.Actor, kind auditlog.WorkflowKind, subjectID string) error {
	if err := s.checker.Require(actor, auth.PermApproveGlobalBan); err != nil {
		return err
	}
	st, err := s.state(ctx, kind, subjectID)
	if err != nil {
		return err
	}
	if err := s.log.Remind(ctx, st.Handle, actor.Tag, st.ActorID, subjectID); err != nil {
		return err
	}
	s.emit(stream.Event{Type: stream.TypeWorkflow, SubjectID: subjectID, ActorTag: actor.Tag, Detail: "reminded"})
	return audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.remind", map[string]any{"subject": subjectID, "kind": string(kind)})
}

// RestoreRoles reapplies the subject's backed-up roles and reports how many
// were restored. Requires the ownership capability.
func (s *Service) RestoreRoles(ctx context.Context, actor auth.Actor, scopeID, subjectID string) (int, error) {
	if err := s.checker.Require(actor, auth.PermOwnership); err != nil {
		return 0, err
	}
	roles, err := s.backups.Get(ctx, scopeID, subjectID)
	if err != nil {
		return 0, fmt.Errorf("moderation: read role backup: %w", err)
	}
	if roles == nil {
		return 0, ErrNoBackup
	}
	restored := 0
	for _, roleID := range roles {
		if err := s.client.AddRole(ctx, scopeID, subjectID, roleID, "Role backup restored"); err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				obs.Error("moderation: restore role", err, map[string]any{"scope": scopeID, "subject": subjectID, "role": roleID})
			}
			continue
		}
		restored++
	}
	if s.cfg.Channels.RestoreLogs != "" {
		if _, err := s.client.PostMessage(ctx, s.cfg.Channels.RestoreLogs, platform.Message{
			Title: "Roles Restored",
			Fields: []platform.Field{
				{Name: auditlog.FieldSubjectID, Value: subjectID},
				{Name: auditlog.FieldActorID, Value: actor.ID},
			},
		}); err != nil {
			obs.Error("moderation: post restore record", err, map[string]any{"scope": scopeID})
		}
	}
	s.emit(stream.Event{Type: stream.TypeRestore, ScopeID: scopeID, SubjectID: subjectID, ActorTag: actor.Tag})
	_ = audit.LogEvent(auth.ContextWithActor(ctx, actor), "moderation.restore_roles", map[string]any{"scope": scopeID, "subject": subjectID, "restored": restored})
	return restored, nil
}

// HandleMemberRemoved snapshots a departing member's roles so they can be
// restored on rejoin. Gateways redeliver removal events; the dedup window
// collapses duplicates observed within a few seconds.
func (s *Service) HandleMemberRemoved(ctx context.Context, scopeID string, member platform.Member) {
	if s.dedupe.Observe(scopeID + ":" + member.User.ID) {
		return
	}
	if len(member.RoleIDs) == 0 {
		return
	}
	if _, err := s.backups.Save(ctx, scopeID, member.User.ID, member.RoleIDs); err != nil {
		obs.Error("moderation: backup on removal", err, map[string]any{"scope": scopeID, "subject": member.User.ID})
		return
	}
	obs.Info("moderation: roles backed up on removal", map[string]any{"scope": scopeID, "subject": member.User.ID, "roles": len(member.RoleIDs)})
}

// HandleMemberJoined applies the configured autorole to a newly joined
// member. Best effort; a missing role never blocks the join.
func (s *Service) HandleMemberJoined(ctx context.Context, scopeID, userID string) {
	if s.cfg.Roles.Autorole == "" {
		return
	}
	if err := s.client.AddRole(ctx, scopeID, userID, s.cfg.Roles.Autorole, "Autorole on join"); err != nil {
		obs.Error("moderation: apply autorole", err, map[string]any{"scope": scopeID, "subject": userID})
	}
}

// GrantTempRole applies the role and tracks its expiry. The scope's own
// moderators may grant without the network moderation permission.
func (s *Service) GrantTempRole(ctx context.Context, actor auth.Actor, scopeID, subjectID, roleID string, ttl time.Duration) (temprole.Grant, error) {
	if err := s.checker.Require(actor, auth.PermModeration); err != nil {
		if !s.cfg.ScopeModerator(scopeID, actor) {
			return temprole.Grant{}, err
		}
	}
	if err := s.client.AddRole(ctx, scopeID, subjectID, roleID, "Temporary role"); err != nil {
		return temprole.Grant{}, fmt.Errorf("moderation: apply temporary role: %w", err)
	}
	g, err := s.temp.Grant(ctx, scopeID, subjectID, roleID, ttl)
	if err != nil {
		return temprole.Grant{}, err
	}
	s.emit(stream.Event{Type: stream.TypeTempRole, ScopeID: scopeID, SubjectID: subjectID, ActorTag: actor.Tag, Detail: roleID})
	s.logAction(ctx, scopeID, fmt.Sprintf("%s granted temporary role %s to %s", actor.Tag, roleID, subjectID))
	return g, nil
}

// RevokeTempRole drops the tracking record and removes the role if it was
// tracked.
func (s *Service) RevokeTempRole(ctx context.Context, actor auth.Actor, scopeID, subjectID, roleID string) (bool, error) {
	if err := s.checker.Require(actor, auth.PermModeration); err != nil {
		if !s.cfg.ScopeModerator(scopeID, actor) {
			return false, err
		}
	}
	removed, err := s.temp.Revoke(ctx, scopeID, subjectID, roleID)
	if err != nil || !removed {
		return removed, err
	}
	if err := s.client.RemoveRole(ctx, scopeID, subjectID, roleID, "Temporary role revoked"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		obs.Error("moderation: remove revoked role", err, map[string]any{"scope": scopeID, "subject": subjectID, "role": roleID})
	}
	return true, nil
}

// TempRoleStatus reports the tracked grant, expired or not.
func (s *Service) TempRoleStatus(ctx context.Context, scopeID, subjectID, roleID string) (temprole.Grant, bool, error) {
	return s.temp.Status(ctx, scopeID, subjectID, roleID)
}
