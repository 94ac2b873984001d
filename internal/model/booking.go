package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the persisted state of a booking.  PENDING_CREATE and
// REJECTED exist only inside a create call and are never stored.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Valid reports whether s is one of the declared statuses.
func (s BookingStatus) Valid() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

// Booking records a user's seats for one show.
//
// Fields:
//  ID            – store assigned identifier.
//  UserID        – user who made the booking.
//  ShowID        – show being booked.
//  Seats         – number of seats, at least 1.
//  TotalPrice    – seats × price per seat at booking time.
//  Status        – CONFIRMED or CANCELLED; CANCELLED is terminal.
//  SeatsSelected – optional seat labels chosen by the client.
//  BookingTime   – when the booking was created.
//  UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64          `json:"id"`
	UserID        uint64          `json:"userId"`
	ShowID        uint64          `json:"showId"`
	Seats         int             `json:"seats"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Status        BookingStatus   `json:"status"`
	SeatsSelected []string        `json:"seatsSelected,omitempty"`
	BookingTime   time.Time       `json:"bookingTime"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// HoldsSeats reports whether the booking currently owns a reservation.
func (b Booking) HoldsSeats() bool {
	return b.Status == BookingConfirmed
}

// BookingInput is a booking creation request.  An empty Status means
// CONFIRMED.  PricePerSeat overrides the show's listed price when set.
type BookingInput struct {
	UserID        uint64
	ShowID        uint64
	Seats         int
	Status        BookingStatus
	PricePerSeat  *decimal.Decimal
	SeatsSelected []string
}

// BookingPatch is a partial booking update.
type BookingPatch struct {
	UserID        *uint64
	ShowID        *uint64
	Seats         *int
	Status        *BookingStatus
	PricePerSeat  *decimal.Decimal
	SeatsSelected []string
}

type BookingFilter struct {
	UserID uint64
	ShowID uint64
	Status BookingStatus
}
