// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// BookingQueueName is the durable queue booking events are published to.
const BookingQueueName = "booking.events"

// EventType names a booking transition.
type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	BookingCancelled EventType = "booking.cancelled"
	BookingUpdated   EventType = "booking.updated"
	BookingDeleted   EventType = "booking.deleted"
)

// BookingEvent is published after a booking transition commits.  It
// carries enough of the booking for downstream consumers to log, notify or
// feed analytics without querying the service.
type BookingEvent struct {
	EventID    string              `json:"eventId"`
	Type       EventType           `json:"type"`
	BookingID  uint64              `json:"bookingId"`
	UserID     uint64              `json:"userId"`
	ShowID     uint64              `json:"showId"`
	Seats      int                 `json:"seats"`
	TotalPrice decimal.Decimal     `json:"totalPrice"`
	Status     model.BookingStatus `json:"status"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// NewBookingEvent snapshots b into an event with a fresh id.
func NewBookingEvent(typ EventType, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.UserID,
		ShowID:     b.ShowID,
		Seats:      b.Seats,
		TotalPrice: b.TotalPrice,
		Status:     b.Status,
		OccurredAt: at.UTC(),
	}
}
