// Package guildconfig holds the bot's operator-edited configuration: audit
// channel IDs, permission role lists and per-scope settings. The file is
// read once at startup. A missing file yields the zero configuration, where
// every publish and permission check degrades to a skip or a denial; a
// present but malformed file fails fast rather than running with
// half-applied settings.
package guildconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auth"
)

// Channels names the audit channels records are published to.
type Channels struct {
	GlobalBanLogs string `json:"globalBanLogs"`
	BlacklistLogs string `json:"blacklistLogs"`
	RestoreLogs   string `json:"restoreLogs"`
}

// Roles names special-purpose roles the bot assigns.
type Roles struct {
	Blacklist string `json:"blacklist"`
	Autorole  string `json:"autorole"`
}

// Settings are behaviour toggles.
type Settings struct {
	SendDMs       bool `json:"sendDMs"`
	LogAllActions bool `json:"logAllActions"`
}

// ScopeConfig overrides behaviour for a single guild: its own moderator
// role list and a channel for plain action logs.
type ScopeConfig struct {
	ModeratorRoles []string `json:"moderatorRoles"`
	LogChannel     string   `json:"logChannel"`
}

// Config is the full bot configuration document.
type Config struct {
	Channels    Channels               `json:"channels"`
	Permissions map[string][]string    `json:"permissions"`
	Roles       Roles                  `json:"roles"`
	Settings    Settings               `json:"settings"`
	Scopes      map[string]ScopeConfig `json:"scopes"`
}

// Load reads and validates the configuration file. A missing file is not an
// error; it returns the zero configuration.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("guildconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("guildconfig: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Channels.GlobalBanLogs == "" {
		return fmt.Errorf("guildconfig: channels.globalBanLogs is required")
	}
	if c.Channels.BlacklistLogs == "" {
		return fmt.Errorf("guildconfig: channels.blacklistLogs is required")
	}
	for key := range c.Permissions {
		if !knownPermission(key) {
			return fmt.Errorf("guildconfig: unknown permission key %q", key)
		}
	}
	return nil
}

func knownPermission(key string) bool {
	for _, p := range auth.BuiltinPermissions {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Checker builds the permission checker from the configured role lists.
func (c Config) Checker() auth.Checker {
	return auth.NewChecker(c.Permissions)
}

// ScopeLog returns the scope's plain action log channel, or "" when the
// scope has none configured.
func (c Config) ScopeLog(scopeID string) string {
	return c.Scopes[scopeID].LogChannel
}

// ScopeModerator reports whether the actor holds one of the scope's
// configured moderator roles.
func (c Config) ScopeModerator(scopeID string, actor auth.Actor) bool {
	for _, roleID := range c.Scopes[scopeID].ModeratorRoles {
		if actor.HasRole(roleID) {
			return true
		}
	}
	return false
}
