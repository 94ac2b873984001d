package model

import "time"

// Theatre is a venue that hosts shows.  No two theatres share the same
// (name, city) pair when compared case-insensitively.
type Theatre struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	Address    string    `json:"address"`
	TotalSeats int       `json:"totalSeats"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type TheatreInput struct {
	Name       string
	City       string
	Address    string
	TotalSeats int
}

type TheatrePatch struct {
	Name       *string
	City       *string
	Address    *string
	TotalSeats *int
}

type TheatreFilter struct {
	City string
}
