package auth

// Permission keys gating moderation operations. Each key resolves to a list
// of allowed role IDs in the bot configuration.
const (
	PermGlobalBan        = "globalban.execute"
	PermApproveGlobalBan = "globalban.approve"
	PermBlacklist        = "blacklist.execute"
	PermOwnership        = "moderation.ownership"
	PermModeration       = "moderation.execute"
)

// Permission describes a capability in the catalog.
type Permission struct {
	Key         string
	Description string
}

var BuiltinPermissions = []Permission{
	{Key: PermGlobalBan, Description: "Issue and escalate global bans"},
	{Key: PermApproveGlobalBan, Description: "Approve, deny or remind on global ban reviews"},
	{Key: PermBlacklist, Description: "Blacklist and unblacklist members"},
	{Key: PermOwnership, Description: "Reverse escalated actions and restore role backups"},
	{Key: PermModeration, Description: "Run scope-local moderation commands"},
}
