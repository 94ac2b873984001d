package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking-inventory/internal/inventory"
	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/queue"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
)

// publishTimeout bounds a single asynchronous event publish.
const publishTimeout = 5 * time.Second

// BookingService orchestrates booking transitions against the inventory
// manager and the entity store.
//
// Transitions on one booking are serialised by a per-booking lock; seat
// changes are serialised per show by the inventory manager.  Every
// transition either commits fully or leaves seats and records as they
// were.  When undoing a partial step fails too, the caller gets
// ErrInternal and the failure is logged.
type BookingService struct {
	users    *repository.UserRepo
	shows    *repository.ShowRepo
	bookings *repository.BookingRepo
	inv      *inventory.Manager
	cal      model.Calendar
	pub      EventPublisher
	log      *log.Logger

	locks    *keyedMutex
	inflight sync.WaitGroup
}

// NewBookingService wires the engine.  A nil publisher disables events.
func NewBookingService(store *repository.Store, inv *inventory.Manager, cal model.Calendar, pub EventPublisher, logger *log.Logger) *BookingService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &BookingService{
		users:    store.Users(),
		shows:    store.Shows(),
		bookings: store.Bookings(),
		inv:      inv,
		cal:      cal,
		pub:      pub,
		log:      logger,
		locks:    newKeyedMutex(),
	}
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id uint64) (model.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// List returns bookings matching f ordered by id.
func (s *BookingService) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, model.Invalid("status must be one of [CONFIRMED CANCELLED]")
	}
	return s.bookings.List(ctx, f), nil
}

// Create books seats on a show.  A CONFIRMED booking reserves its seats
// before the record is written; if the write fails the seats are returned.
// A CANCELLED booking is recorded without touching inventory.
func (s *BookingService) Create(ctx context.Context, in model.BookingInput) (model.Booking, error) {
	if in.Seats < 1 {
		return model.Booking{}, model.ErrInvalidSeatCount
	}
	status := in.Status
	if status == "" {
		status = model.BookingConfirmed
	}
	if !status.Valid() {
		return model.Booking{}, model.Invalid("status must be one of [CONFIRMED CANCELLED]")
	}
	if in.PricePerSeat != nil && in.PricePerSeat.IsNegative() {
		return model.Booking{}, model.Invalid("pricePerSeat must not be negative")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return model.Booking{}, err
	}
	show, err := s.shows.GetByID(ctx, in.ShowID)
	if err != nil {
		return model.Booking{}, err
	}
	if s.cal.IsPast(show.Date) {
		return model.Booking{}, fmt.Errorf("%w: show %d was on %s", model.ErrShowPast, show.ID, show.Date)
	}

	perSeat := show.Price
	if in.PricePerSeat != nil {
		perSeat = *in.PricePerSeat
	}
	b := model.Booking{
		UserID:        in.UserID,
		ShowID:        in.ShowID,
		Seats:         in.Seats,
		TotalPrice:    perSeat.Mul(decimal.NewFromInt(int64(in.Seats))),
		Status:        status,
		SeatsSelected: in.SeatsSelected,
	}

	if b.HoldsSeats() {
		if err := s.inv.Reserve(ctx, b.ShowID, b.Seats); err != nil {
			return model.Booking{}, err
		}
	}
	saved, err := s.bookings.Create(ctx, b)
	if err != nil {
		if b.HoldsSeats() {
			if rerr := s.inv.Release(ctx, b.ShowID, b.Seats); rerr != nil {
				return model.Booking{}, s.compensationFailed("create", 0, err, rerr)
			}
		}
		return model.Booking{}, err
	}

	s.logTransition("booking created", saved)
	typ := queue.BookingConfirmed
	if !saved.HoldsSeats() {
		typ = queue.BookingCancelled
	}
	s.emit(typ, saved)
	return saved, nil
}

// Update applies a partial change.  Cancelled bookings are terminal: they
// cannot be confirmed again nor have their show or seat count changed.
// Seat changes on the same show are a single exchange at the inventory
// manager; moving to another show reserves there first and only then
// releases the old seats.
func (s *BookingService) Update(ctx context.Context, id uint64, p model.BookingPatch) (model.Booking, error) {
	if p.Seats != nil && *p.Seats < 1 {
		return model.Booking{}, model.ErrInvalidSeatCount
	}
	if p.Status != nil && !p.Status.Valid() {
		return model.Booking{}, model.Invalid("status must be one of [CONFIRMED CANCELLED]")
	}
	if p.PricePerSeat != nil && p.PricePerSeat.IsNegative() {
		return model.Booking{}, model.Invalid("pricePerSeat must not be negative")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	next := cur
	if p.UserID != nil {
		next.UserID = *p.UserID
	}
	if p.ShowID != nil {
		next.ShowID = *p.ShowID
	}
	if p.Seats != nil {
		next.Seats = *p.Seats
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.SeatsSelected != nil {
		next.SeatsSelected = p.SeatsSelected
	}
	showChanged := next.ShowID != cur.ShowID
	seatsChanged := next.Seats != cur.Seats

	if !cur.HoldsSeats() {
		if next.HoldsSeats() {
			return model.Booking{}, fmt.Errorf("%w: booking %d cannot be confirmed again", model.ErrBookingCancelled, id)
		}
		if showChanged || seatsChanged {
			return model.Booking{}, fmt.Errorf("%w: booking %d seats and show are frozen", model.ErrBookingCancelled, id)
		}
	}
	if cur.HoldsSeats() && !next.HoldsSeats() && (showChanged || seatsChanged) {
		return model.Booking{}, model.Invalid("show and seats cannot change while cancelling a booking")
	}
	if next.UserID != cur.UserID {
		if _, err := s.users.GetByID(ctx, next.UserID); err != nil {
			return model.Booking{}, err
		}
	}

	show, err := s.shows.GetByID(ctx, next.ShowID)
	if err != nil {
		return model.Booking{}, err
	}
	if showChanged && s.cal.IsPast(show.Date) {
		return model.Booking{}, fmt.Errorf("%w: show %d was on %s", model.ErrShowPast, show.ID, show.Date)
	}

	switch {
	case p.PricePerSeat != nil:
		next.TotalPrice = p.PricePerSeat.Mul(decimal.NewFromInt(int64(next.Seats)))
	case showChanged:
		next.TotalPrice = show.Price.Mul(decimal.NewFromInt(int64(next.Seats)))
	case seatsChanged:
		// keep the per-seat price the booking was made at
		next.TotalPrice = cur.TotalPrice.Mul(decimal.NewFromInt(int64(next.Seats))).
			Div(decimal.NewFromInt(int64(cur.Seats)))
	}

	undo, err := s.moveSeats(ctx, cur, next)
	if err != nil {
		return model.Booking{}, err
	}
	saved, err := s.bookings.Update(ctx, id, func(b *model.Booking) error {
		*b = next
		return nil
	})
	if err != nil {
		if uerr := undo(); uerr != nil {
			return model.Booking{}, s.compensationFailed("update", id, err, uerr)
		}
		return model.Booking{}, err
	}

	s.logTransition("booking updated", saved)
	typ := queue.BookingUpdated
	if cur.HoldsSeats() && !saved.HoldsSeats() {
		typ = queue.BookingCancelled
	}
	s.emit(typ, saved)
	return saved, nil
}

// Cancel marks a booking CANCELLED and returns its seats.  Cancelling a
// cancelled booking succeeds without changing anything.
func (s *BookingService) Cancel(ctx context.Context, id uint64) (model.Booking, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !cur.HoldsSeats() {
		return cur, nil
	}
	if err := s.inv.Release(ctx, cur.ShowID, cur.Seats); err != nil {
		return model.Booking{}, err
	}
	saved, err := s.bookings.Update(ctx, id, func(b *model.Booking) error {
		b.Status = model.BookingCancelled
		return nil
	})
	if err != nil {
		if rerr := s.inv.Reclaim(ctx, cur.ShowID, cur.Seats); rerr != nil {
			return model.Booking{}, s.compensationFailed("cancel", id, err, rerr)
		}
		return model.Booking{}, err
	}

	s.logTransition("booking cancelled", saved)
	s.emit(queue.BookingCancelled, saved)
	return saved, nil
}

// Delete returns a confirmed booking's seats and removes the record.
func (s *BookingService) Delete(ctx context.Context, id uint64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.HoldsSeats() {
		if err := s.inv.Release(ctx, cur.ShowID, cur.Seats); err != nil {
			return err
		}
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		if cur.HoldsSeats() {
			if rerr := s.inv.Reclaim(ctx, cur.ShowID, cur.Seats); rerr != nil {
				return s.compensationFailed("delete", id, err, rerr)
			}
		}
		return err
	}

	s.logTransition("booking deleted", cur)
	s.emit(queue.BookingDeleted, cur)
	return nil
}

// Close waits for in-flight event publishes.
func (s *BookingService) Close() {
	s.inflight.Wait()
}

// moveSeats brings inventory from what cur holds to what next needs and
// returns a func that reverts the change.
func (s *BookingService) moveSeats(ctx context.Context, cur, next model.Booking) (undo func() error, err error) {
	noop := func() error { return nil }
	switch {
	case !cur.HoldsSeats():
		return noop, nil

	case !next.HoldsSeats():
		if err := s.inv.Release(ctx, cur.ShowID, cur.Seats); err != nil {
			return nil, err
		}
		return func() error { return s.inv.Reclaim(ctx, cur.ShowID, cur.Seats) }, nil

	case next.ShowID != cur.ShowID:
		if err := s.inv.Reserve(ctx, next.ShowID, next.Seats); err != nil {
			return nil, err
		}
		if err := s.inv.Release(ctx, cur.ShowID, cur.Seats); err != nil {
			if rerr := s.inv.Release(ctx, next.ShowID, next.Seats); rerr != nil {
				return nil, s.compensationFailed("update", cur.ID, err, rerr)
			}
			return nil, err
		}
		return func() error {
			return errors.Join(
				s.inv.Reclaim(ctx, cur.ShowID, cur.Seats),
				s.inv.Release(ctx, next.ShowID, next.Seats),
			)
		}, nil

	case next.Seats != cur.Seats:
		if err := s.inv.Exchange(ctx, cur.ShowID, cur.Seats, next.Seats); err != nil {
			return nil, err
		}
		return func() error {
			if next.Seats > cur.Seats {
				return s.inv.Release(ctx, cur.ShowID, next.Seats-cur.Seats)
			}
			return s.inv.Reclaim(ctx, cur.ShowID, cur.Seats-next.Seats)
		}, nil
	}
	return noop, nil
}

func (s *BookingService) compensationFailed(op string, id uint64, cause, compErr error) error {
	s.log.Errorj(log.JSON{
		"msg":        "booking compensation failed",
		"op":         op,
		"booking_id": id,
		"cause":      cause.Error(),
		"error":      compErr.Error(),
	})
	return fmt.Errorf("%w: %s booking %d: %v (compensation: %v)", model.ErrInternal, op, id, cause, compErr)
}

func (s *BookingService) logTransition(msg string, b model.Booking) {
	s.log.Infoj(log.JSON{
		"msg":         msg,
		"booking_id":  b.ID,
		"show_id":     b.ShowID,
		"user_id":     b.UserID,
		"seats":       b.Seats,
		"status":      b.Status,
		"total_price": b.TotalPrice.String(),
	})
}

// emit publishes asynchronously so a slow broker never delays the response.
func (s *BookingService) emit(typ queue.EventType, b model.Booking) {
	ev := queue.NewBookingEvent(typ, b, time.Now())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Warnj(log.JSON{
				"msg":        "booking event publish failed",
				"event_id":   ev.EventID,
				"type":       ev.Type,
				"booking_id": ev.BookingID,
				"error":      err.Error(),
			})
		}
	}()
}
