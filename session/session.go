package session

import (
	"approvalflow/authority"
	"context"

	"github.com/fundwit/go-commons/types"
)

// Session is the principal an operation runs for, together with its trace context.
type Session struct {
	Context  context.Context       `json:"-"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

func (i Identity) DisplayName() string {
	if i.Nickname != "" {
		return i.Nickname
	}
	return i.Name
}

func (s *Session) ActorID() types.ID {
	return s.Identity.ID
}

func (s *Session) ActorName() string {
	return s.Identity.DisplayName()
}

func (s *Session) HasPermission(perm string) bool {
	return s.Perms.HasPermission(perm)
}

func (s *Session) Ctx() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}
	return s.Context
}

func (s *Session) Clone() Session {
	perms := make(authority.Permissions, len(s.Perms))
	copy(perms, s.Perms)
	return Session{Context: s.Context, Identity: s.Identity, Perms: perms}
}

// NewRobot builds a principal for scheduled jobs.
func NewRobot(ctx context.Context, id types.ID, name string, perms ...string) *Session {
	return &Session{Context: ctx, Identity: Identity{ID: id, Name: name}, Perms: perms}
}
