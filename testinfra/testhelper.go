package testinfra

import (
	"approvalflow/authority"
	"approvalflow/session"
	"context"

	"github.com/fundwit/go-commons/types"
)

// BuildSession build a principal holding the given permissions
func BuildSession(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Context:  context.Background(),
		Identity: session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:    authority.Permissions(perms),
	}
}
