package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// TheatreRepo manages theatres inside a Store.  The pair (name, city) is
// unique when compared case-insensitively.
type TheatreRepo struct{ s *Store }

// Create inserts t and returns the stored record.
func (r *TheatreRepo) Create(ctx context.Context, t model.Theatre) (model.Theatre, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Name, t.City = strings.TrimSpace(t.Name), strings.TrimSpace(t.City)
	if r.existsLocked(t.Name, t.City, 0) {
		return model.Theatre{}, model.ErrTheatreExists
	}
	t.ID = s.seq.theatre + 1
	t.CreatedAt = s.stamp()
	t.UpdatedAt = t.CreatedAt
	if err := s.persist(func(m Mirror) error { return m.SaveTheatre(ctx, t) }); err != nil {
		return model.Theatre{}, err
	}
	s.seq.theatre = t.ID
	s.theatres[t.ID] = t
	return t, nil
}

// GetByID returns the theatre or ErrTheatreNotFound.
func (r *TheatreRepo) GetByID(ctx context.Context, id uint64) (model.Theatre, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.theatres[id]
	if !ok {
		return model.Theatre{}, model.ErrTheatreNotFound
	}
	return t, nil
}

// List returns theatres ordered by id, optionally restricted to one city.
func (r *TheatreRepo) List(ctx context.Context, f model.TheatreFilter) []model.Theatre {
	r.s.mu.RLock()
	all := sortedValues(r.s.theatres, func(t model.Theatre) uint64 { return t.ID })
	r.s.mu.RUnlock()

	if strings.TrimSpace(f.City) == "" {
		return all
	}
	out := all[:0]
	for _, t := range all {
		if model.FoldEqual(t.City, f.City) {
			out = append(out, t)
		}
	}
	return out
}

// Update applies a mutation to a copy of the theatre and stores it if the
// (name, city) pair stays unique.
func (r *TheatreRepo) Update(ctx context.Context, id uint64, apply func(*model.Theatre) error) (model.Theatre, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.theatres[id]
	if !ok {
		return model.Theatre{}, model.ErrTheatreNotFound
	}
	next := cur
	if err := apply(&next); err != nil {
		return model.Theatre{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.Name, next.City = strings.TrimSpace(next.Name), strings.TrimSpace(next.City)
	if r.existsLocked(next.Name, next.City, id) {
		return model.Theatre{}, model.ErrTheatreExists
	}
	next.UpdatedAt = s.stamp()
	if err := s.persist(func(m Mirror) error { return m.SaveTheatre(ctx, next) }); err != nil {
		return model.Theatre{}, err
	}
	s.theatres[id] = next
	return next, nil
}

// Delete removes a theatre that no show refers to.
func (r *TheatreRepo) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.theatres[id]; !ok {
		return model.ErrTheatreNotFound
	}
	for _, sh := range s.shows {
		if sh.TheatreID == id {
			return fmtReferenced("theatre", id, "shows")
		}
	}
	if err := s.persist(func(m Mirror) error { return m.DeleteTheatre(ctx, id) }); err != nil {
		return err
	}
	delete(s.theatres, id)
	return nil
}

func (r *TheatreRepo) existsLocked(name, city string, except uint64) bool {
	for _, t := range r.s.theatres {
		if t.ID != except && model.FoldEqual(t.Name, name) && model.FoldEqual(t.City, city) {
			return true
		}
	}
	return false
}
