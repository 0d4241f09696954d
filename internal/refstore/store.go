// Package refstore builds and holds the read-only lookup tables (users,
// user groups, channels) used to resolve provider references into labels.
package refstore

import (
	"strings"
)

type User struct {
	ID          string
	Handle      string
	DisplayName string
	RealName    string
	IsBot       bool
}

// Name is the preferred human label for the user.
func (u User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.RealName != "":
		return u.RealName
	default:
		return u.Handle
	}
}

// FirstName is used when several participants share one label.
func (u User) FirstName() string {
	for _, candidate := range []string{u.RealName, u.DisplayName, u.Handle} {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

type Group struct {
	ID     string
	Handle string
}

type Channel struct {
	ID            string
	Name          string
	IsDM          bool
	IsGroupDM     bool
	IsArchived    bool
	CounterpartID string
}

// Identity is the authenticated account as reported by the provider.
type Identity struct {
	UserID       string
	TeamID       string
	WorkspaceURL string
}

// Store is immutable after construction. Lookups on a stale store simply miss.
type Store struct {
	selfID       string
	workspaceURL string
	users        map[string]User
	handles      map[string]string
	groups       map[string]string
	channels     map[string]Channel
}

// NewStore inserts the given records, skipping archived channels and users or
// groups that lack an id or a usable display field.
func NewStore(identity Identity, users []User, groups []Group, channels []Channel) *Store {
	s := &Store{
		selfID:       identity.UserID,
		workspaceURL: identity.WorkspaceURL,
		users:        make(map[string]User, len(users)),
		handles:      make(map[string]string, len(users)),
		groups:       make(map[string]string, len(groups)),
		channels:     make(map[string]Channel, len(channels)),
	}

	for _, u := range users {
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" || u.Name() == "" {
			continue
		}
		s.users[u.ID] = u
		if u.Handle != "" {
			s.handles[strings.ToLower(u.Handle)] = u.ID
		}
	}

	for _, g := range groups {
		id := strings.TrimSpace(g.ID)
		handle := strings.TrimPrefix(strings.TrimSpace(g.Handle), "@")
		if id == "" || handle == "" {
			continue
		}
		s.groups[id] = handle
	}

	for _, c := range channels {
		if c.ID == "" || c.IsArchived {
			continue
		}
		s.channels[c.ID] = c
	}

	return s
}

func (s *Store) SelfID() string { return s.selfID }

func (s *Store) WorkspaceURL() string { return s.workspaceURL }

func (s *Store) User(id string) (User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// UserByHandle resolves a login handle (case-insensitive).
func (s *Store) UserByHandle(handle string) (User, bool) {
	id, ok := s.handles[strings.ToLower(handle)]
	if !ok {
		return User{}, false
	}
	return s.User(id)
}

func (s *Store) Group(id string) (string, bool) {
	h, ok := s.groups[id]
	return h, ok
}

func (s *Store) Channel(id string) (Channel, bool) {
	c, ok := s.channels[id]
	return c, ok
}

// HasChannels reports whether any channel listing produced data.
func (s *Store) HasChannels() bool { return len(s.channels) > 0 }

// Stats summarises the store contents for logging.
func (s *Store) Stats() (users, groups, channels int) {
	return len(s.users), len(s.groups), len(s.channels)
}

// UserName resolves a user id to its display name.
func (s *Store) UserName(id string) (string, bool) {
	u, ok := s.users[id]
	if !ok {
		return "", false
	}
	return u.Name(), true
}

func (s *Store) GroupHandle(id string) (string, bool) {
	return s.Group(id)
}

// ChannelName returns the name of a named channel. Direct messages have none.
func (s *Store) ChannelName(id string) (string, bool) {
	c, ok := s.Channel(id)
	if !ok || c.Name == "" {
		return "", false
	}
	return c.Name, true
}
