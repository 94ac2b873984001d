package repository

import (
	"context"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// BookingRepo manages bookings inside a Store.  It only checks that the
// referenced user and show exist; seat accounting is the booking engine's
// job.
type BookingRepo struct{ s *Store }

// Create inserts b.  BookingTime is stamped by the store.
func (r *BookingRepo) Create(ctx context.Context, b model.Booking) (model.Booking, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.checkRefsLocked(b); err != nil {
		return model.Booking{}, err
	}
	b = cloneBooking(b)
	b.ID = s.seq.booking + 1
	b.BookingTime = s.stamp()
	b.UpdatedAt = b.BookingTime
	if err := s.persist(func(m Mirror) error { return m.SaveBooking(ctx, b) }); err != nil {
		return model.Booking{}, err
	}
	s.seq.booking = b.ID
	s.bookings[b.ID] = b
	return cloneBooking(b), nil
}

// GetByID returns the booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

// List returns bookings matching f ordered by id.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) []model.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := sortedValues(r.s.bookings, func(b model.Booking) uint64 { return b.ID })
	out := all[:0]
	for _, b := range all {
		switch {
		case f.UserID != 0 && b.UserID != f.UserID:
			continue
		case f.ShowID != 0 && b.ShowID != f.ShowID:
			continue
		case f.Status != "" && b.Status != f.Status:
			continue
		}
		out = append(out, cloneBooking(b))
	}
	return out
}

// Update applies a mutation to a copy of the booking and stores it.  The
// referenced user and show must still exist.
func (r *BookingRepo) Update(ctx context.Context, id uint64, apply func(*model.Booking) error) (model.Booking, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrBookingNotFound
	}
	next := cloneBooking(cur)
	if err := apply(&next); err != nil {
		return model.Booking{}, err
	}
	next.ID, next.BookingTime = cur.ID, cur.BookingTime
	if err := r.checkRefsLocked(next); err != nil {
		return model.Booking{}, err
	}
	next.UpdatedAt = s.stamp()
	if err := s.persist(func(m Mirror) error { return m.SaveBooking(ctx, next) }); err != nil {
		return model.Booking{}, err
	}
	s.bookings[id] = next
	return cloneBooking(next), nil
}

// Delete removes a booking record.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return model.ErrBookingNotFound
	}
	if err := s.persist(func(m Mirror) error { return m.DeleteBooking(ctx, id) }); err != nil {
		return err
	}
	delete(s.bookings, id)
	return nil
}

func (r *BookingRepo) checkRefsLocked(b model.Booking) error {
	if _, ok := r.s.users[b.UserID]; !ok {
		return model.ErrUserNotFound
	}
	if _, ok := r.s.shows[b.ShowID]; !ok {
		return model.ErrShowNotFound
	}
	return nil
}
