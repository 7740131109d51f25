package account

import "github.com/fundwit/go-commons/types"

type User struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name     string   `json:"name" gorm:"unique_index"`
	Nickname string   `json:"nickname"`
	Email    string   `json:"email"`
}

// UserRole binds a user to a business role such as SALES_MANAGER, approval chains and notifications resolve roles through it.
type UserRole struct {
	UserID types.ID `json:"userId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Role   string   `json:"role" gorm:"primary_key"`
}

type UserCreation struct {
	Name     string   `json:"name" yaml:"name" validate:"required,lte=32"`
	Nickname string   `json:"nickname" yaml:"nickname" validate:"omitempty,gte=1,lte=32"`
	Email    string   `json:"email" yaml:"email" validate:"omitempty,email"`
	Roles    []string `json:"roles" yaml:"roles" validate:"dive,required"`
}

func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}
