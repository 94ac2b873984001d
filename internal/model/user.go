package model

import "time"

// User represents a customer record held by the entity store.  The id is
// assigned by the store and never changes.  Email is unique across users
// when compared case-insensitively.
//
// Fields:
//  ID           – store assigned identifier, starting at 1.
//  Name         – display name, never empty.
//  Email        – unique email address.
//  Phone        – exactly ten digits.
//  PasswordHash – optional bcrypt hash; never serialised.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserInput carries the attributes accepted when creating a user.
type UserInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// UserPatch carries a partial update.  Nil fields are left untouched.
type UserPatch struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
}

// UserFilter narrows a user listing.  Zero values match everything.
type UserFilter struct {
	Email string
}
