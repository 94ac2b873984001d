package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// UserRepo manages users inside a Store.
type UserRepo struct{ s *Store }

// Create inserts u, assigns its id and timestamps, and returns the stored
// record.  Emails are normalised to lower case and must be unique.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if r.emailTakenLocked(u.Email, 0) {
		return model.User{}, model.ErrEmailTaken
	}
	u.ID = s.seq.user + 1
	u.CreatedAt = s.stamp()
	u.UpdatedAt = u.CreatedAt
	if err := s.persist(func(m Mirror) error { return m.SaveUser(ctx, u) }); err != nil {
		return model.User{}, err
	}
	s.seq.user = u.ID
	s.users[u.ID] = u
	return u, nil
}

// GetByID returns the user with the given id or ErrUserNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

// List returns users matching f ordered by id.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) []model.User {
	r.s.mu.RLock()
	all := sortedValues(r.s.users, func(u model.User) uint64 { return u.ID })
	r.s.mu.RUnlock()

	if f.Email == "" {
		return all
	}
	email := normalizeEmail(f.Email)
	out := all[:0]
	for _, u := range all {
		if u.Email == email {
			out = append(out, u)
		}
	}
	return out
}

// Update loads the user, lets apply mutate a copy, re-checks email
// uniqueness and stores the result.  The id and creation time cannot change.
func (r *UserRepo) Update(ctx context.Context, id uint64, apply func(*model.User) error) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	next := cur
	if err := apply(&next); err != nil {
		return model.User{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.Email = normalizeEmail(next.Email)
	if r.emailTakenLocked(next.Email, id) {
		return model.User{}, model.ErrEmailTaken
	}
	next.UpdatedAt = s.stamp()
	if err := s.persist(func(m Mirror) error { return m.SaveUser(ctx, next) }); err != nil {
		return model.User{}, err
	}
	s.users[id] = next
	return next, nil
}

// Delete removes a user.  Users referenced by any booking cannot be deleted.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	for _, b := range s.bookings {
		if b.UserID == id {
			return fmtReferenced("user", id, "bookings")
		}
	}
	if err := s.persist(func(m Mirror) error { return m.DeleteUser(ctx, id) }); err != nil {
		return err
	}
	delete(s.users, id)
	return nil
}

func (r *UserRepo) emailTakenLocked(email string, except uint64) bool {
	for _, u := range r.s.users {
		if u.ID != except && u.Email == email {
			return true
		}
	}
	return false
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
