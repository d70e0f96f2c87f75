// Command smoke-mod drives the moderation service end to end against the
// in-memory platform client: a global ban with escalation and a denial by
// ownership, a blacklist round trip, and a temp role expiry sweep.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auditlog"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auth"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/cases"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/guildconfig"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/moderation"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/rolebackup"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/temprole"
)

func main() {
	log.SetFlags(0)
	ctx := context.Background()

	mem := platform.NewMemory()
	for _, gid := range []string{"guild-a", "guild-b"} {
		mem.AddGuild(platform.Guild{ID: gid, Name: gid})
	}
	mem.AddGuildRole("guild-a", platform.Role{ID: "role-vip", Name: "VIP"})
	mem.AddGuildRole("guild-a", platform.Role{ID: "role-blacklisted", Name: "Blacklisted"})
	mem.AddGuildRole("guild-a", platform.Role{ID: "role-temp", Name: "Event"})
	mem.AddMember("guild-a", platform.Member{
		User:    platform.User{ID: "user-1", Tag: "target#1"},
		RoleIDs: []string{"role-vip"},
	})
	mem.AddMember("guild-b", platform.Member{
		User: platform.User{ID: "user-1", Tag: "target#1"},
	})

	cfg := guildconfig.Config{
		Channels: guildconfig.Channels{
			GlobalBanLogs: "ch-bans",
			BlacklistLogs: "ch-blacklist",
			RestoreLogs:   "ch-restore",
		},
		Permissions: map[string][]string{
			auth.PermGlobalBan:        {"staff"},
			auth.PermApproveGlobalBan: {"staff"},
			auth.PermBlacklist:        {"staff"},
			auth.PermModeration:       {"staff"},
			auth.PermOwnership:        {"owners"},
		},
		Roles:    guildconfig.Roles{Blacklist: "role-blacklisted"},
		Settings: guildconfig.Settings{SendDMs: true},
	}

	ledger := cases.NewLedger("")
	backups := rolebackup.NewStore("")
	tempRoles := temprole.NewStore("")

	svc := moderation.New(moderation.Deps{
		Client:    mem,
		Ledger:    ledger,
		Backups:   backups,
		TempRoles: tempRoles,
		AuditLog: auditlog.New(mem, auditlog.ChannelMap(
			cfg.Channels.GlobalBanLogs, cfg.Channels.BlacklistLogs)),
		Config:  cfg,
		Checker: cfg.Checker(),
	})

	staff := auth.Actor{ID: "staff-1", Tag: "mod#1", RoleIDs: []string{"staff"}}
	owner := auth.Actor{ID: "owner-1", Tag: "owner#1", RoleIDs: []string{"owners"}}

	// Global ban across every guild, then escalation and a denial by ownership.
	rec, batch, err := svc.GlobalBan(ctx, staff, "user-1", "target#1", "raiding")
	if err != nil {
		log.Fatalf("global ban: %v", err)
	}
	if rec.CaseID != "PNET-0001" {
		log.Fatalf("unexpected case id %s", rec.CaseID)
	}
	if batch.Succeeded() != 2 {
		log.Fatalf("expected 2 guilds banned, got %d", batch.Succeeded())
	}
	if err := svc.Escalate(ctx, staff, auditlog.WorkflowGlobalBan, "user-1"); err != nil {
		log.Fatalf("escalate: %v", err)
	}
	if err := svc.Deny(ctx, staff, auditlog.WorkflowGlobalBan, "", "user-1", "insufficient proof"); err == nil {
		log.Fatal("escalated denial must require ownership")
	}
	if err := svc.Deny(ctx, owner, auditlog.WorkflowGlobalBan, "", "user-1", "insufficient proof"); err != nil {
		log.Fatalf("deny by owner: %v", err)
	}
	if _, err := mem.Ban(ctx, "guild-a", "user-1"); err == nil {
		log.Fatal("denial should have lifted the ban")
	}

	// The ban removed the membership; the user rejoins before the blacklist.
	mem.AddMember("guild-a", platform.Member{
		User:    platform.User{ID: "user-1", Tag: "target#1"},
		RoleIDs: []string{"role-vip"},
	})

	// Blacklist strips roles with a backup, unblacklist restores them.
	if _, err := svc.Blacklist(ctx, staff, "guild-a", "user-1", "spam"); err != nil {
		log.Fatalf("blacklist: %v", err)
	}
	member, err := mem.Member(ctx, "guild-a", "user-1")
	if err != nil {
		log.Fatalf("member after blacklist: %v", err)
	}
	if len(member.RoleIDs) != 1 || member.RoleIDs[0] != "role-blacklisted" {
		log.Fatalf("unexpected roles after blacklist: %v", member.RoleIDs)
	}
	if _, err := svc.Unblacklist(ctx, staff, "guild-a", "user-1", "appealed"); err != nil {
		log.Fatalf("unblacklist: %v", err)
	}
	member, _ = mem.Member(ctx, "guild-a", "user-1")
	if !member.HasRole("role-vip") {
		log.Fatalf("roles not restored: %v", member.RoleIDs)
	}

	// Temp role grant expires on sweep.
	if _, err := svc.GrantTempRole(ctx, staff, "guild-a", "user-1", "role-temp", time.Minute); err != nil {
		log.Fatalf("grant temp role: %v", err)
	}
	later := time.Now().Add(2 * time.Minute)
	tempRoles.SetNow(func() time.Time { return later })
	sweeper := temprole.NewSweeper(tempRoles, mem, temprole.DefaultSweepInterval)
	sweeper.Sweep(ctx)
	member, _ = mem.Member(ctx, "guild-a", "user-1")
	if member.HasRole("role-temp") {
		log.Fatal("temp role not removed by sweep")
	}
	if _, ok, _ := tempRoles.Status(ctx, "guild-a", "user-1", "role-temp"); ok {
		log.Fatal("temp role record survived sweep")
	}

	if dms := mem.DMs("user-1"); len(dms) == 0 {
		log.Fatal("expected DM notification for global ban")
	}

	fmt.Println("✅ moderation smoke test passed")
}
