package platform

import (
	"context"
	"sync"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/ids"
)

// Memory implements Client entirely in process. It backs package tests and
// the smoke command; state is mutated through the same interface the core
// uses plus a few seeding helpers.
type Memory struct {
	mu      sync.Mutex
	guilds  map[string]Guild
	members map[string]map[string]Member // guildID -> userID
	roles   map[string]map[string]Role   // guildID -> roleID
	bans    map[string]map[string]Ban    // guildID -> userID
	msgs    map[string][]Message         // channelID -> oldest first
	threads map[string][]string          // threadID -> contents
	dms     map[string][]string          // userID -> contents

	now   func() time.Time
	calls map[string]int
	fail  map[string]error
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty in-process platform.
func NewMemory() *Memory {
	return &Memory{
		guilds:  make(map[string]Guild),
		members: make(map[string]map[string]Member),
		roles:   make(map[string]map[string]Role),
		bans:    make(map[string]map[string]Ban),
		msgs:    make(map[string][]Message),
		threads: make(map[string][]string),
		dms:     make(map[string][]string),
		now:     time.Now,
		calls:   make(map[string]int),
		fail:    make(map[string]error),
	}
}

// SetNow overrides the clock used to stamp posted messages.
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailWith makes the named method return err until cleared with a nil err.
func (m *Memory) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, method)
		return
	}
	m.fail[method] = err
}

// Calls returns how many times the named method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *Memory) enter(method string) error {
	m.calls[method]++
	return m.fail[method]
}

// AddGuild seeds a guild.
func (m *Memory) AddGuild(g Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[g.ID] = g
	if m.members[g.ID] == nil {
		m.members[g.ID] = make(map[string]Member)
	}
	if m.roles[g.ID] == nil {
		m.roles[g.ID] = make(map[string]Role)
	}
	if m.bans[g.ID] == nil {
		m.bans[g.ID] = make(map[string]Ban)
	}
}

// AddMember seeds a member into a guild.
func (m *Memory) AddMember(guildID string, member Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[guildID] == nil {
		m.members[guildID] = make(map[string]Member)
	}
	m.members[guildID][member.User.ID] = member
}

// RemoveMember drops a member from a guild.
func (m *Memory) RemoveMember(guildID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[guildID], userID)
}

// AddGuildRole seeds a role into a guild.
func (m *Memory) AddGuildRole(guildID string, r Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[guildID] == nil {
		m.roles[guildID] = make(map[string]Role)
	}
	m.roles[guildID][r.ID] = r
}

// DeleteGuildRole removes a role definition, leaving member role lists as-is.
func (m *Memory) DeleteGuildRole(guildID, roleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles[guildID], roleID)
}

// DMs returns the direct messages delivered to a user.
func (m *Memory) DMs(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.dms[userID]))
	copy(out, m.dms[userID])
	return out
}

// ThreadMessages returns the contents posted to a thread.
func (m *Memory) ThreadMessages(threadID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.threads[threadID]))
	copy(out, m.threads[threadID])
	return out
}

func (m *Memory) Guilds(ctx context.Context) ([]Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds"); err != nil {
		return nil, err
	}
	out := make([]Guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		out = append(out, g)
	}
	return out, nil
}

func (m *Memory) Guild(ctx context.Context, guildID string) (Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guild"); err != nil {
		return Guild{}, err
	}
	g, ok := m.guilds[guildID]
	if !ok {
		return Guild{}, ErrNotFound
	}
	return g, nil
}

func (m *Memory) Member(ctx context.Context, guildID, userID string) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Member"); err != nil {
		return Member{}, err
	}
	mem, ok := m.members[guildID][userID]
	if !ok {
		return Member{}, ErrNotFound
	}
	out := mem
	out.RoleIDs = append([]string(nil), mem.RoleIDs...)
	return out, nil
}

func (m *Memory) Role(ctx context.Context, guildID, roleID string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Role"); err != nil {
		return Role{}, err
	}
	r, ok := m.roles[guildID][roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddRole"); err != nil {
		return err
	}
	mem, ok := m.members[guildID][userID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.roles[guildID][roleID]; !ok {
		return ErrNotFound
	}
	if !mem.HasRole(roleID) {
		mem.RoleIDs = append(mem.RoleIDs, roleID)
		m.members[guildID][userID] = mem
	}
	return nil
}

func (m *Memory) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveRole"); err != nil {
		return err
	}
	mem, ok := m.members[guildID][userID]
	if !ok {
		return ErrNotFound
	}
	kept := mem.RoleIDs[:0]
	for _, id := range mem.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	mem.RoleIDs = kept
	m.members[guildID][userID] = mem
	return nil
}

func (m *Memory) Ban(ctx context.Context, guildID, userID string) (Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Ban"); err != nil {
		return Ban{}, err
	}
	b, ok := m.bans[guildID][userID]
	if !ok {
		return Ban{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) CreateBan(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateBan"); err != nil {
		return err
	}
	if _, ok := m.guilds[guildID]; !ok {
		return ErrNotFound
	}
	if m.bans[guildID] == nil {
		m.bans[guildID] = make(map[string]Ban)
	}
	m.bans[guildID][userID] = Ban{UserID: userID, Reason: reason}
	delete(m.members[guildID], userID)
	return nil
}

func (m *Memory) RemoveBan(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveBan"); err != nil {
		return err
	}
	if _, ok := m.bans[guildID][userID]; !ok {
		return ErrNotFound
	}
	delete(m.bans[guildID], userID)
	return nil
}

func (m *Memory) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Timeout"); err != nil {
		return err
	}
	if _, ok := m.members[guildID][userID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) SendDM(ctx context.Context, userID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SendDM"); err != nil {
		return err
	}
	m.dms[userID] = append(m.dms[userID], content)
	return nil
}

func (m *Memory) PostMessage(ctx context.Context, channelID string, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PostMessage"); err != nil {
		return Message{}, err
	}
	msg.ID = ids.New()
	msg.ChannelID = channelID
	msg.CreatedAt = m.now()
	m.msgs[channelID] = append(m.msgs[channelID], msg)
	return msg, nil
}

func (m *Memory) EditMessageButtons(ctx context.Context, channelID, messageID string, buttons []Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("EditMessageButtons"); err != nil {
		return err
	}
	for i, msg := range m.msgs[channelID] {
		if msg.ID == messageID {
			m.msgs[channelID][i].Buttons = append([]Button(nil), buttons...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RecentMessages"); err != nil {
		return nil, err
	}
	all := m.msgs[channelID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *Memory) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("StartThread"); err != nil {
		return "", err
	}
	for i, msg := range m.msgs[channelID] {
		if msg.ID == messageID {
			if msg.ThreadID != "" {
				return msg.ThreadID, nil
			}
			threadID := ids.New()
			m.msgs[channelID][i].ThreadID = threadID
			m.threads[threadID] = nil
			return threadID, nil
		}
	}
	return "", ErrNotFound
}

func (m *Memory) PostThreadMessage(ctx context.Context, threadID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PostThreadMessage"); err != nil {
		return err
	}
	if _, ok := m.threads[threadID]; !ok {
		return ErrNotFound
	}
	m.threads[threadID] = append(m.threads[threadID], content)
	return nil
}
