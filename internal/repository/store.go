// Package repository implements the entity store: the authoritative mapping
// from id to record for users, theatres, shows and bookings.  Records live in
// memory behind a single RWMutex so every listing is a consistent snapshot.
// Uniqueness and referential rules are checked under the same lock as the
// write they guard.  An optional Mirror receives every committed write; when
// the mirror fails the write is abandoned and ErrInternal is returned.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// Mirror persists committed writes outside the process.  MySQLMirror is the
// production implementation; a nil Mirror keeps the store purely in memory.
type Mirror interface {
	SaveUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id uint64) error
	SaveTheatre(ctx context.Context, t model.Theatre) error
	DeleteTheatre(ctx context.Context, id uint64) error
	SaveShow(ctx context.Context, s model.Show) error
	SaveShowSeats(ctx context.Context, id uint64, capacity, available int) error
	DeleteShow(ctx context.Context, id uint64) error
	SaveBooking(ctx context.Context, b model.Booking) error
	DeleteBooking(ctx context.Context, id uint64) error
}

// Snapshot is a full copy of the store contents, used to hydrate the store
// from a mirror at startup.
type Snapshot struct {
	Users    []model.User
	Theatres []model.Theatre
	Shows    []model.Show
	Bookings []model.Booking
}

// sequence hands out ids per entity type.  Ids start at 1 and are never
// reused within a process, even after deletes.
type sequence struct {
	user, theatre, show, booking uint64
}

// Store holds every table.  Use the typed repositories returned by Users,
// Theatres, Shows and Bookings rather than touching the maps directly.
type Store struct {
	mu       sync.RWMutex
	users    map[uint64]model.User
	theatres map[uint64]model.Theatre
	shows    map[uint64]model.Show
	bookings map[uint64]model.Booking
	seq      sequence

	mirror Mirror
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMirror makes every committed write go through m first.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithClock overrides the clock used for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		users:    make(map[uint64]model.User),
		theatres: make(map[uint64]model.Theatre),
		shows:    make(map[uint64]model.Show),
		bookings: make(map[uint64]model.Booking),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users returns the user repository backed by s.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Theatres returns the theatre repository backed by s.
func (s *Store) Theatres() *TheatreRepo { return &TheatreRepo{s: s} }

// Shows returns the show repository backed by s.
func (s *Store) Shows() *ShowRepo { return &ShowRepo{s: s} }

// Bookings returns the booking repository backed by s.
func (s *Store) Bookings() *BookingRepo { return &BookingRepo{s: s} }

// Restore replaces the store contents with snap.  Sequences continue after
// the highest id seen per type.  It is meant for startup hydration and does
// not write to the mirror.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[uint64]model.User, len(snap.Users))
	s.theatres = make(map[uint64]model.Theatre, len(snap.Theatres))
	s.shows = make(map[uint64]model.Show, len(snap.Shows))
	s.bookings = make(map[uint64]model.Booking, len(snap.Bookings))
	s.seq = sequence{}
	for _, u := range snap.Users {
		s.users[u.ID] = u
		s.seq.user = max(s.seq.user, u.ID)
	}
	for _, t := range snap.Theatres {
		s.theatres[t.ID] = t
		s.seq.theatre = max(s.seq.theatre, t.ID)
	}
	for _, sh := range snap.Shows {
		s.shows[sh.ID] = sh
		s.seq.show = max(s.seq.show, sh.ID)
	}
	for _, b := range snap.Bookings {
		s.bookings[b.ID] = cloneBooking(b)
		s.seq.booking = max(s.seq.booking, b.ID)
	}
}

// InventoryView returns every show together with the seats held by its
// confirmed bookings, read under one lock so both sides agree.
func (s *Store) InventoryView() ([]model.Show, map[uint64]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shows := sortedValues(s.shows, func(v model.Show) uint64 { return v.ID })
	held := make(map[uint64]int, len(s.shows))
	for _, b := range s.bookings {
		if b.HoldsSeats() {
			held[b.ShowID] += b.Seats
		}
	}
	return shows, held
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// persist runs fn against the mirror when one is configured and wraps any
// failure as ErrInternal.
func (s *Store) persist(fn func(m Mirror) error) error {
	if s.mirror == nil {
		return nil
	}
	if err := fn(s.mirror); err != nil {
		return fmt.Errorf("%w: mirror write: %v", model.ErrInternal, err)
	}
	return nil
}

// sortedValues copies map values into a slice ordered by id ascending.
func sortedValues[T any](m map[uint64]T, id func(T) uint64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func cloneBooking(b model.Booking) model.Booking {
	if b.SeatsSelected != nil {
		b.SeatsSelected = append([]string(nil), b.SeatsSelected...)
	}
	return b
}
