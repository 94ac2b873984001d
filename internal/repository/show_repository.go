package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// ShowRepo manages shows inside a Store.  Capacity and SeatsAvailable are
// owned by the inventory manager: Create records the initial values and
// afterwards only SetSeats changes them.
type ShowRepo struct{ s *Store }

// Create inserts sh.  The theatre must exist and the slot
// (theatre, movie title, date, time) must be free.
func (r *ShowRepo) Create(ctx context.Context, sh model.Show) (model.Show, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	sh.MovieTitle = strings.TrimSpace(sh.MovieTitle)
	if _, ok := s.theatres[sh.TheatreID]; !ok {
		return model.Show{}, model.ErrTheatreNotFound
	}
	if r.slotTakenLocked(sh, 0) {
		return model.Show{}, model.ErrShowExists
	}
	sh.ID = s.seq.show + 1
	sh.CreatedAt = s.stamp()
	sh.UpdatedAt = sh.CreatedAt
	if err := s.persist(func(m Mirror) error { return m.SaveShow(ctx, sh) }); err != nil {
		return model.Show{}, err
	}
	s.seq.show = sh.ID
	s.shows[sh.ID] = sh
	return sh, nil
}

// GetByID returns the show or ErrShowNotFound.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (model.Show, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sh, ok := r.s.shows[id]
	if !ok {
		return model.Show{}, model.ErrShowNotFound
	}
	return sh, nil
}

// List returns shows matching f ordered by id.
func (r *ShowRepo) List(ctx context.Context, f model.ShowFilter) []model.Show {
	r.s.mu.RLock()
	all := sortedValues(r.s.shows, func(sh model.Show) uint64 { return sh.ID })
	r.s.mu.RUnlock()

	title := strings.ToLower(strings.TrimSpace(f.MovieTitle))
	out := all[:0]
	for _, sh := range all {
		switch {
		case f.TheatreID != 0 && sh.TheatreID != f.TheatreID:
			continue
		case title != "" && !strings.Contains(strings.ToLower(sh.MovieTitle), title):
			continue
		case f.Date != "" && sh.Date != f.Date:
			continue
		case f.FutureOnly && sh.Date < f.Today:
			continue
		}
		out = append(out, sh)
	}
	return out
}

// Update applies a mutation to a copy of the show.  Seat counts written by
// apply are discarded; use SetSeats for those.
func (r *ShowRepo) Update(ctx context.Context, id uint64, apply func(*model.Show) error) (model.Show, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.shows[id]
	if !ok {
		return model.Show{}, model.ErrShowNotFound
	}
	next := cur
	if err := apply(&next); err != nil {
		return model.Show{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.Capacity, next.SeatsAvailable = cur.Capacity, cur.SeatsAvailable
	next.MovieTitle = strings.TrimSpace(next.MovieTitle)
	if _, ok := s.theatres[next.TheatreID]; !ok {
		return model.Show{}, model.ErrTheatreNotFound
	}
	if r.slotTakenLocked(next, id) {
		return model.Show{}, model.ErrShowExists
	}
	next.UpdatedAt = s.stamp()
	if err := s.persist(func(m Mirror) error { return m.SaveShow(ctx, next) }); err != nil {
		return model.Show{}, err
	}
	s.shows[id] = next
	return next, nil
}

// SetSeats overwrites the seat counters of a show.  The inventory manager
// calls it while holding the show's own lock, which orders concurrent
// writers to the same show.  The mirror write happens under the store lock,
// so it cannot land after the show has been deleted.
func (r *ShowRepo) SetSeats(ctx context.Context, id uint64, capacity, available int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shows[id]
	if !ok {
		return model.ErrShowNotFound
	}
	if err := s.persist(func(m Mirror) error { return m.SaveShowSeats(ctx, id, capacity, available) }); err != nil {
		return err
	}
	sh.Capacity, sh.SeatsAvailable = capacity, available
	sh.UpdatedAt = s.stamp()
	s.shows[id] = sh
	return nil
}

// Delete removes a show that no booking refers to, whatever the booking's
// status.
func (r *ShowRepo) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shows[id]; !ok {
		return model.ErrShowNotFound
	}
	for _, b := range s.bookings {
		if b.ShowID == id {
			return fmtReferenced("show", id, "bookings")
		}
	}
	if err := s.persist(func(m Mirror) error { return m.DeleteShow(ctx, id) }); err != nil {
		return err
	}
	delete(s.shows, id)
	return nil
}

func (r *ShowRepo) slotTakenLocked(sh model.Show, except uint64) bool {
	for _, o := range r.s.shows {
		if o.ID != except && o.SameSlot(sh) {
			return true
		}
	}
	return false
}
