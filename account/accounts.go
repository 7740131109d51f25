package account

import (
	"approvalflow/authority"
	"approvalflow/bizerror"
	"approvalflow/idgen"
	"approvalflow/notify"
	"approvalflow/session"
	"context"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

var (
	userIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
	validate     = validator.New()

	seedRobot    = session.NewRobot(context.Background(), 13, "account-seed-robot", authority.PermSystemAdmin)

	CreateUserFunc         = CreateUser
	QueryAccountNamesFunc  = QueryAccountNames
	QueryAccountEmailsFunc = QueryAccountEmails
)

func CreateUser(c *UserCreation, s *session.Session, db *gorm.DB) (*User, error) {
	if !s.Perms.HasRole(authority.PermSystemAdmin) {
		return nil, bizerror.ErrForbidden
	}
	if err := validate.Struct(c); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}

	user := User{ID: idgen.NextID(userIdWorker), Name: c.Name, Nickname: c.Nickname, Email: c.Email}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		for _, role := range c.Roles {
			if err := tx.Create(&UserRole{UserID: user.ID, Role: role}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SeedUsers creates the declared users whose names are not taken yet and reports how many it created.
func SeedUsers(users []UserCreation, db *gorm.DB) (int, error) {
	created := 0
	for i := range users {
		taken := 0
		if err := db.Model(&User{}).Where("name = ?", users[i].Name).Count(&taken).Error; err != nil {
			return created, err
		}
		if taken > 0 {
			continue
		}
		if _, err := CreateUserFunc(&users[i], seedRobot, db); err != nil {
			return created, fmt.Errorf("seed user %s: %w", users[i].Name, err)
		}
		created++
	}
	return created, nil
}

func QueryAccountNames(ids []types.ID, db *gorm.DB) (map[types.ID]string, error) {
	if len(ids) == 0 {
		return map[types.ID]string{}, nil
	}
	var records []User
	if err := db.Model(&User{}).Where("id IN (?)", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	result := map[types.ID]string{}
	for _, r := range records {
		result[r.ID] = r.DisplayName()
	}
	return result, nil
}

func QueryAccountEmails(ids []types.ID, db *gorm.DB) (map[types.ID]string, error) {
	if len(ids) == 0 {
		return map[types.ID]string{}, nil
	}
	var records []User
	if err := db.Model(&User{}).Where("id IN (?)", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	result := map[types.ID]string{}
	for _, r := range records {
		if r.Email != "" {
			result[r.ID] = r.Email
		}
	}
	return result, nil
}

// ContactBook addresses notifications with the account display names and emails.
type ContactBook struct{}

func (ContactBook) ContactsOf(ids []types.ID, db *gorm.DB) (map[types.ID]notify.Contact, error) {
	names, err := QueryAccountNamesFunc(ids, db)
	if err != nil {
		return nil, err
	}
	emails, err := QueryAccountEmailsFunc(ids, db)
	if err != nil {
		return nil, err
	}
	contacts := make(map[types.ID]notify.Contact, len(names))
	for id, name := range names {
		contacts[id] = notify.Contact{Name: name, Email: emails[id]}
	}
	return contacts, nil
}

// RoleDirectory resolves role members, lookups are cached for the configured expiration.
type RoleDirectory struct {
	cache *cache.Cache
}

func NewRoleDirectory(expiration time.Duration) *RoleDirectory {
	return &RoleDirectory{cache: cache.New(expiration, 2*expiration)}
}

func (d *RoleDirectory) UsersWithRole(role string, db *gorm.DB) ([]types.ID, error) {
	if cached, found := d.cache.Get(role); found {
		if ids, ok := cached.([]types.ID); ok {
			return ids, nil
		}
	}
	var records []UserRole
	if err := db.Where(&UserRole{Role: role}).Order("user_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UserID)
	}
	d.cache.SetDefault(role, ids)
	return ids, nil
}

func (d *RoleDirectory) GrantRole(userID types.ID, role string, db *gorm.DB) error {
	if err := db.Save(&UserRole{UserID: userID, Role: role}).Error; err != nil {
		return err
	}
	d.cache.Delete(role)
	return nil
}

func (d *RoleDirectory) RevokeRole(userID types.ID, role string, db *gorm.DB) error {
	if err := db.Where("user_id = ? AND role = ?", userID, role).Delete(&UserRole{}).Error; err != nil {
		return err
	}
	d.cache.Delete(role)
	return nil
}
