// Package inventory owns the per-show seat counters.  It is the only
// component that changes a show's SeatsAvailable or Capacity.  Every show has
// its own mutex, so reservations on one show never wait on another, and the
// check and the decrement of a reservation happen under that one lock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// ShowStore is the slice of the entity store the manager needs.  SetSeats
// must persist the new counters or fail without changing anything.
type ShowStore interface {
	GetByID(ctx context.Context, id uint64) (model.Show, error)
	SetSeats(ctx context.Context, id uint64, capacity, available int) error
}

// counter is the in-memory seat state of one show.  It is loaded from the
// store the first time the show is touched.
type counter struct {
	mu        sync.Mutex
	loaded    bool
	retired   bool
	capacity  int
	available int
}

// Manager serialises seat changes per show.
type Manager struct {
	shows ShowStore
	cal   model.Calendar

	mu       sync.Mutex
	counters map[uint64]*counter
}

// NewManager returns a Manager writing through to shows.  cal decides which
// show dates count as past.
func NewManager(shows ShowStore, cal model.Calendar) *Manager {
	return &Manager{
		shows:    shows,
		cal:      cal,
		counters: make(map[uint64]*counter),
	}
}

// Reserve takes n seats from the show.  It fails with ErrShowNotFound,
// ErrShowPast or ErrInsufficientSeats and leaves the counter untouched in
// every failure case.
func (m *Manager) Reserve(ctx context.Context, showID uint64, n int) error {
	if n < 1 {
		return model.ErrInvalidSeatCount
	}
	return m.withCounter(ctx, showID, func(c *counter) error {
		if err := m.checkNotPast(ctx, showID); err != nil {
			return err
		}
		if c.available < n {
			return insufficient(showID, c.available, n)
		}
		return m.commit(ctx, showID, c, c.capacity, c.available-n)
	})
}

// Release gives n seats back to the show.  The counter never rises above
// the show's capacity, so a duplicate release cannot mint seats.  Releasing
// seats of a show that has since been deleted is a no-op.
func (m *Manager) Release(ctx context.Context, showID uint64, n int) error {
	if n < 1 {
		return model.ErrInvalidSeatCount
	}
	err := m.withCounter(ctx, showID, func(c *counter) error {
		return m.commit(ctx, showID, c, c.capacity, min(c.capacity, c.available+n))
	})
	if errors.Is(err, errRetired) {
		return nil
	}
	return err
}

// Reclaim takes back n seats that a failed transition released moments
// earlier.  It skips the past-date check, since the seats belonged to an
// existing booking, but still refuses to oversell.
func (m *Manager) Reclaim(ctx context.Context, showID uint64, n int) error {
	if n < 1 {
		return model.ErrInvalidSeatCount
	}
	return m.withCounter(ctx, showID, func(c *counter) error {
		if c.available < n {
			return insufficient(showID, c.available, n)
		}
		return m.commit(ctx, showID, c, c.capacity, c.available-n)
	})
}

// Exchange swaps a reservation of release seats for one of reserve seats on
// the same show in one step.  Either both halves apply or neither does.
func (m *Manager) Exchange(ctx context.Context, showID uint64, release, reserve int) error {
	if release < 1 || reserve < 1 {
		return model.ErrInvalidSeatCount
	}
	return m.withCounter(ctx, showID, func(c *counter) error {
		if err := m.checkNotPast(ctx, showID); err != nil {
			return err
		}
		freed := min(c.capacity, c.available+release)
		if freed < reserve {
			return insufficient(showID, freed, reserve)
		}
		return m.commit(ctx, showID, c, c.capacity, freed-reserve)
	})
}

// Adjust changes a show's seat counters without touching reservations.
// Setting available keeps the reserved count and moves capacity with it;
// setting capacity keeps the reserved count and moves available.  When both
// are given they must agree with the reserved count.
func (m *Manager) Adjust(ctx context.Context, showID uint64, available, capacity *int) (model.Show, error) {
	if available == nil && capacity == nil {
		return m.shows.GetByID(ctx, showID)
	}
	if outOfRange(available) || outOfRange(capacity) {
		return model.Show{}, model.Invalid("seat counts must be between 0 and %d", model.MaxShowCapacity)
	}
	err := m.withCounter(ctx, showID, func(c *counter) error {
		reserved := c.capacity - c.available
		nextCap, nextAvail := c.capacity, c.available
		switch {
		case available != nil && capacity != nil:
			if *capacity-*available != reserved {
				return model.Invalid("capacity %d minus seatsAvailable %d must equal %d reserved seats", *capacity, *available, reserved)
			}
			nextCap, nextAvail = *capacity, *available
		case available != nil:
			if *available > model.MaxShowCapacity-reserved {
				return model.Invalid("seatsAvailable %d with %d reserved seats exceeds capacity limit %d", *available, reserved, model.MaxShowCapacity)
			}
			nextCap, nextAvail = reserved+*available, *available
		default:
			if *capacity < reserved {
				return model.Invalid("capacity %d is below %d reserved seats", *capacity, reserved)
			}
			nextCap, nextAvail = *capacity, *capacity-reserved
		}
		return m.commit(ctx, showID, c, nextCap, nextAvail)
	})
	if err != nil {
		return model.Show{}, err
	}
	return m.shows.GetByID(ctx, showID)
}

func outOfRange(n *int) bool {
	return n != nil && (*n < 0 || *n > model.MaxShowCapacity)
}

// Retire forgets the counter of a deleted show.  Operations already waiting
// on its lock see the show as gone.
func (m *Manager) Retire(showID uint64) {
	m.mu.Lock()
	c, ok := m.counters[showID]
	delete(m.counters, showID)
	m.mu.Unlock()
	if !ok {
		return
	}
	c.mu.Lock()
	c.retired = true
	c.mu.Unlock()
}

var errRetired = errors.New("counter retired")

// withCounter runs fn while holding the show's lock, loading the counter
// from the store on first use.
func (m *Manager) withCounter(ctx context.Context, showID uint64, fn func(c *counter) error) error {
	m.mu.Lock()
	c, ok := m.counters[showID]
	if !ok {
		c = &counter{}
		m.counters[showID] = c
	}
	m.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retired {
		return errRetiredOrMissing(showID)
	}
	if !c.loaded {
		sh, err := m.shows.GetByID(ctx, showID)
		if err != nil {
			m.forget(showID, c)
			return err
		}
		c.capacity, c.available, c.loaded = sh.Capacity, sh.SeatsAvailable, true
	}
	return fn(c)
}

// forget drops an unloaded counter so a later call retries the store.
func (m *Manager) forget(showID uint64, c *counter) {
	m.mu.Lock()
	if m.counters[showID] == c {
		delete(m.counters, showID)
	}
	m.mu.Unlock()
}

// commit writes the new counters through to the store and only then
// updates memory.  A show deleted underneath the counter retires it.
func (m *Manager) commit(ctx context.Context, showID uint64, c *counter, capacity, available int) error {
	if err := m.shows.SetSeats(ctx, showID, capacity, available); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.retired = true
			return errRetiredOrMissing(showID)
		}
		if errors.Is(err, model.ErrInternal) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrInternal, err)
	}
	c.capacity, c.available = capacity, available
	return nil
}

func (m *Manager) checkNotPast(ctx context.Context, showID uint64) error {
	sh, err := m.shows.GetByID(ctx, showID)
	if err != nil {
		return err
	}
	if m.cal.IsPast(sh.Date) {
		return fmt.Errorf("%w: show %d was on %s", model.ErrShowPast, showID, sh.Date)
	}
	return nil
}

func insufficient(showID uint64, available, requested int) error {
	return fmt.Errorf("%w: show %d has %d seats available, %d requested",
		model.ErrInsufficientSeats, showID, available, requested)
}

// errRetiredOrMissing reports a retired counter as ErrShowNotFound while
// still letting Release recognise it.
func errRetiredOrMissing(showID uint64) error {
	return fmt.Errorf("%w: %w (show %d)", model.ErrShowNotFound, errRetired, showID)
}
