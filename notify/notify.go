package notify

import (
	"sort"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Request asks for a templated message to reach the explicit recipients plus every holder of the roles.
type Request struct {
	Template   string                 `json:"template"`
	Roles      []string               `json:"roles"`
	Recipients []types.ID             `json:"recipients"`
	Data       map[string]interface{} `json:"data"`
}

type Message struct {
	Template  string   `json:"template"`
	Recipient types.ID `json:"recipient"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Body      string   `json:"body"`
}

type Directory interface {
	UsersWithRole(role string, db *gorm.DB) ([]types.ID, error)
}

type Contact struct {
	Name  string
	Email string
}

// Contacts looks up how to address recipients, unknown ids are left out of the result.
type Contacts interface {
	ContactsOf(ids []types.ID, db *gorm.DB) (map[types.ID]Contact, error)
}

// ResolveRecipients merges explicit recipients with role holders, deduplicated and ordered by id.
func ResolveRecipients(req *Request, directory Directory, db *gorm.DB) ([]types.ID, error) {
	seen := map[types.ID]bool{}
	var result []types.ID
	add := func(id types.ID) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		result = append(result, id)
	}

	for _, id := range req.Recipients {
		add(id)
	}
	if directory != nil {
		for _, role := range req.Roles {
			ids, err := directory.UsersWithRole(role, db)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				add(id)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}
