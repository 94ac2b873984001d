package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout and TimeLayout are the wire formats of Show.Date and Show.Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// MaxShowCapacity bounds a show's seat counters so that capacity arithmetic
// never overflows.
const MaxShowCapacity = 1_000_000

// Show represents a scheduled screening of a movie in a theatre.
//
// Fields:
//  ID             – store assigned identifier.
//  MovieTitle     – movie name; compared case-insensitively for uniqueness.
//  TheatreID      – theatre hosting the show.
//  Date           – calendar date ("YYYY-MM-DD").
//  Time           – start time of day ("HH:MM").
//  Price          – listed price per seat, never negative.
//  Capacity       – seat count the show was created with; the upper bound
//                   SeatsAvailable can be restored to.
//  SeatsAvailable – unreserved seats.  Only the inventory manager writes it.
//  Language       – optional spoken language.
//  Screen         – optional screen name inside the theatre.
type Show struct {
	ID             uint64          `json:"id"`
	MovieTitle     string          `json:"movieTitle"`
	TheatreID      uint64          `json:"theatreId"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Price          decimal.Decimal `json:"price"`
	Capacity       int             `json:"capacity"`
	SeatsAvailable int             `json:"seatsAvailable"`
	Language       string          `json:"language,omitempty"`
	Screen         string          `json:"screen,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Reserved returns the number of seats held by confirmed bookings.
func (s Show) Reserved() int {
	return s.Capacity - s.SeatsAvailable
}

type ShowInput struct {
	MovieTitle     string
	TheatreID      uint64
	Date           string
	Time           string
	Price          decimal.Decimal
	SeatsAvailable int
	Language       string
	Screen         string
}

// ShowPatch is a partial show update.  SeatsAvailable and Capacity are not
// written directly; the show service routes them through the inventory
// manager so the reservation invariant keeps holding.
type ShowPatch struct {
	MovieTitle     *string
	TheatreID      *uint64
	Date           *string
	Time           *string
	Price          *decimal.Decimal
	SeatsAvailable *int
	Capacity       *int
	Language       *string
	Screen         *string
}

// ShowFilter narrows a show listing.  MovieTitle matches as a
// case-insensitive substring.  FutureOnly keeps shows dated today or later,
// relative to Today.
type ShowFilter struct {
	TheatreID  uint64
	MovieTitle string
	Date       string
	FutureOnly bool
	Today      string
}

// SameSlot reports whether two shows collide on the uniqueness tuple
// (theatre, movie title, date, time).
func (s Show) SameSlot(o Show) bool {
	return s.TheatreID == o.TheatreID &&
		FoldEqual(s.MovieTitle, o.MovieTitle) &&
		s.Date == o.Date &&
		s.Time == o.Time
}
