package models

import (
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	Run        string `bun:"run,pk" json:"run"`
	FirstNames string `bun:"first_names,notnull" json:"firstNames"`
	LastNames  string `bun:"last_names,notnull" json:"lastNames"`
	Email      string `bun:"email,unique,notnull" json:"email"`
	Phone      string `bun:"phone" json:"phone"`
	Notify     bool   `bun:"notify" json:"notify"`
	IsAdmin    bool   `bun:"is_admin" json:"isAdmin"`
}

// FullName is the salutation used on confirmation emails.
func (u *User) FullName() string {
	return u.FirstNames + " " + u.LastNames
}
