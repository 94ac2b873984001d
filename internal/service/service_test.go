package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-inventory/internal/inventory"
	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/queue"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
)

const (
	today     = "2030-05-10"
	yesterday = "2030-05-09"
	tomorrow  = "2030-05-11"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	store    *repository.Store
	inv      *inventory.Manager
	users    *UserService
	theatres *TheatreService
	shows    *ShowService
	bookings *BookingService
	pub      *recordingPublisher
	cal      model.Calendar
}

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

func newEnv(t *testing.T, opts ...repository.Option) *env {
	t.Helper()
	cal := model.Calendar{
		Now:      func() time.Time { return time.Date(2030, 5, 10, 23, 30, 0, 0, time.UTC) },
		Location: time.UTC,
	}
	store := repository.NewStore(opts...)
	inv := inventory.NewManager(store.Shows(), cal)
	pub := &recordingPublisher{}
	e := &env{
		store:    store,
		inv:      inv,
		users:    NewUserService(store, 4),
		theatres: NewTheatreService(store),
		shows:    NewShowService(store, inv, cal),
		bookings: NewBookingService(store, inv, cal, pub, quietLogger()),
		pub:      pub,
		cal:      cal,
	}
	t.Cleanup(e.bookings.Close)
	return e
}

func (e *env) user(t *testing.T, email string) model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), model.UserInput{Name: "Ann", Email: email, Phone: "9876543210"})
	require.NoError(t, err)
	return u
}

func (e *env) theatre(t *testing.T, name string) model.Theatre {
	t.Helper()
	th, err := e.theatres.Create(context.Background(), model.TheatreInput{Name: name, City: "Pune", Address: "123 MG Road"})
	require.NoError(t, err)
	return th
}

func (e *env) show(t *testing.T, theatreID uint64, title, date string, price int64, seats int) model.Show {
	t.Helper()
	sh, err := e.shows.Create(context.Background(), model.ShowInput{
		MovieTitle: title, TheatreID: theatreID, Date: date, Time: "18:00",
		Price: decimal.NewFromInt(price), SeatsAvailable: seats,
	})
	require.NoError(t, err)
	return sh
}

func (e *env) seats(t *testing.T, showID uint64) int {
	t.Helper()
	sh, err := e.shows.Get(context.Background(), showID)
	require.NoError(t, err)
	return sh.SeatsAvailable
}

func (e *env) assertBalanced(t *testing.T) {
	t.Helper()
	shows, held := e.store.InventoryView()
	for _, sh := range shows {
		assert.Equal(t, sh.Capacity, sh.SeatsAvailable+held[sh.ID], "show %d", sh.ID)
	}
}

func TestBooking_RoundTripPrice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	th := e.theatre(t, "Cineplex")
	for _, title := range []string{"Alien", "Brazil", "Casablanca", "Drive"} {
		e.show(t, th.ID, title, tomorrow, 100, 10)
	}
	sh, err := e.shows.Create(ctx, model.ShowInput{MovieTitle: "Heat", TheatreID: th.ID, Date: tomorrow, Time: "21:00", Price: decimal.NewFromInt(200), SeatsAvailable: 10})
	require.NoError(t, err)
	require.Equal(t, uint64(1), u.ID)
	require.Equal(t, uint64(5), sh.ID)

	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: 1, ShowID: 5, Seats: 2})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(400).Equal(b.TotalPrice))
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, 8, e.seats(t, 5))
	assert.False(t, b.BookingTime.IsZero())
}

func TestBooking_DuneScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	th, err := e.theatres.Create(ctx, model.TheatreInput{Name: "Cineplex", City: "Pune", Address: "123 MG Road"})
	require.NoError(t, err)
	sh, err := e.shows.Create(ctx, model.ShowInput{
		MovieTitle: "Dune", TheatreID: th.ID, Date: tomorrow, Time: "18:00",
		Price: decimal.NewFromInt(300), SeatsAvailable: 100,
	})
	require.NoError(t, err)

	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 3})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(900).Equal(b.TotalPrice))
	assert.Equal(t, 97, e.seats(t, sh.ID))

	got, err := e.bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Equal(t, 100, e.seats(t, sh.ID))
	e.assertBalanced(t)
}

func TestBooking_PastDateBoundary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	th := e.theatre(t, "Cineplex")
	todayShow := e.show(t, th.ID, "Today", today, 100, 5)

	// shows dated in the past cannot be created, so plant one directly
	past, err := e.store.Shows().Create(ctx, model.Show{MovieTitle: "Old", TheatreID: th.ID, Date: yesterday, Time: "10:00", Capacity: 5, SeatsAvailable: 5})
	require.NoError(t, err)

	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: past.ID, Seats: 1})
	assert.ErrorIs(t, err, model.ErrPastDate)
	assert.Equal(t, 5, e.seats(t, past.ID))

	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: todayShow.ID, Seats: 1})
	assert.NoError(t, err)
}

func TestBooking_CreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 2)

	_, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 0})
	assert.ErrorIs(t, err, model.ErrInvalidSeatCount)
	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: 99, ShowID: sh.ID, Seats: 1})
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: 99, Seats: 1})
	assert.ErrorIs(t, err, model.ErrShowNotFound)
	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 1, Status: "PENDING"})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 3})
	assert.ErrorIs(t, err, model.ErrInsufficientSeats)

	assert.Empty(t, e.store.Bookings().List(ctx, model.BookingFilter{}))
	assert.Equal(t, 2, e.seats(t, sh.ID))
}

func TestBooking_CancelledCreateHoldsNoSeats(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 2)

	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 5, Status: model.BookingCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, 2, e.seats(t, sh.ID))
}

func TestBooking_PricePerSeatOverride(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 10)

	price := decimal.RequireFromString("150.50")
	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 2, PricePerSeat: &price})
	require.NoError(t, err)
	assert.Equal(t, "301", b.TotalPrice.String())

	seats := 4
	b, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Seats: &seats})
	require.NoError(t, err)
	assert.Equal(t, "602", b.TotalPrice.String())
	assert.Equal(t, 6, e.seats(t, sh.ID))
}

func TestBooking_ConcurrentLastSeat(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 1)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, short int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientSeats):
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, short)
	assert.Len(t, e.store.Bookings().List(ctx, model.BookingFilter{Status: model.BookingConfirmed}), 1)
	assert.Equal(t, 0, e.seats(t, sh.ID))
}

func TestBooking_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 10)
	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 4})
	require.NoError(t, err)

	first, err := e.bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	second, err := e.bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 10, e.seats(t, sh.ID))

	_, err = e.bookings.Cancel(ctx, 999)
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}

func TestBooking_CancelledIsTerminal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 300, 10)
	b, _ := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 2})
	_, err := e.bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)

	confirmed := model.BookingConfirmed
	_, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Status: &confirmed})
	assert.ErrorIs(t, err, model.ErrBookingCancelled)

	seats := 3
	_, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Seats: &seats})
	assert.ErrorIs(t, err, model.ErrBookingCancelled)

	got, err := e.bookings.Update(ctx, b.ID, model.BookingPatch{SeatsSelected: []string{"B4"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, got.SeatsSelected)
	assert.Equal(t, 10, e.seats(t, sh.ID))
}

func TestBooking_UpdateSeatsSameShow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 5)
	b, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 2})
	require.NoError(t, err)

	seats := 5
	b, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Seats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 0, e.seats(t, sh.ID))
	assert.True(t, decimal.NewFromInt(500).Equal(b.TotalPrice))

	seats = 6
	_, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Seats: &seats})
	assert.ErrorIs(t, err, model.ErrInsufficientSeats)
	got, _ := e.bookings.Get(ctx, b.ID)
	assert.Equal(t, 5, got.Seats)
	assert.Equal(t, 0, e.seats(t, sh.ID))

	seats = 1
	_, err = e.bookings.Update(ctx, b.ID, model.BookingPatch{Seats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 4, e.seats(t, sh.ID))
	e.assertBalanced(t)
}

func TestBooking_UpdateMovesShow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	th := e.theatre(t, "Cineplex")
	a := e.show(t, th.ID, "Dune", tomorrow, 100, 5)
	bShow := e.show(t, th.ID, "Arrival", tomorrow, 250, 2)
	full := e.show(t, th.ID, "Heat", tomorrow, 100, 1)

	bk, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: a.ID, Seats: 2})
	require.NoError(t, err)

	_, err = e.bookings.Update(ctx, bk.ID, model.BookingPatch{ShowID: &full.ID})
	assert.ErrorIs(t, err, model.ErrInsufficientSeats)
	assert.Equal(t, 3, e.seats(t, a.ID))
	assert.Equal(t, 1, e.seats(t, full.ID))

	moved, err := e.bookings.Update(ctx, bk.ID, model.BookingPatch{ShowID: &bShow.ID})
	require.NoError(t, err)
	assert.Equal(t, bShow.ID, moved.ShowID)
	assert.True(t, decimal.NewFromInt(500).Equal(moved.TotalPrice))
	assert.Equal(t, 5, e.seats(t, a.ID))
	assert.Equal(t, 0, e.seats(t, bShow.ID))

	missing := uint64(999)
	_, err = e.bookings.Update(ctx, bk.ID, model.BookingPatch{ShowID: &missing})
	assert.ErrorIs(t, err, model.ErrShowNotFound)
	e.assertBalanced(t)
}

func TestBooking_UpdateRejectsPastShow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	th := e.theatre(t, "Cineplex")
	cur := e.show(t, th.ID, "Dune", tomorrow, 100, 5)
	past, err := e.store.Shows().Create(ctx, model.Show{MovieTitle: "Old", TheatreID: th.ID, Date: yesterday, Time: "10:00", Capacity: 5, SeatsAvailable: 5})
	require.NoError(t, err)

	bk, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: cur.ID, Seats: 1})
	require.NoError(t, err)
	_, err = e.bookings.Update(ctx, bk.ID, model.BookingPatch{ShowID: &past.ID})
	assert.ErrorIs(t, err, model.ErrPastDate)
	assert.Equal(t, 4, e.seats(t, cur.ID))
}

func TestBooking_UpdateToCancelledReleases(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 5)
	bk, _ := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 3})

	cancelled := model.BookingCancelled
	got, err := e.bookings.Update(ctx, bk.ID, model.BookingPatch{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Equal(t, 5, e.seats(t, sh.ID))

	e.bookings.Close()
	assert.ElementsMatch(t, []queue.EventType{queue.BookingConfirmed, queue.BookingCancelled}, e.pub.types())
}

func TestBooking_DeleteReleases(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 5)
	bk, _ := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 3})

	require.NoError(t, e.bookings.Delete(ctx, bk.ID))
	assert.Equal(t, 5, e.seats(t, sh.ID))
	_, err := e.bookings.Get(ctx, bk.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, e.bookings.Delete(ctx, bk.ID), model.ErrNotFound)
}

func TestBooking_PublishFailureDoesNotFailBooking(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.pub.err = errors.New("broker down")
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 5)

	_, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 1})
	require.NoError(t, err)
	e.bookings.Close()
	assert.Len(t, e.pub.types(), 1)
}

type bookingWriteFails struct {
	repository.Mirror
	fail bool
}

func (m *bookingWriteFails) SaveUser(context.Context, model.User) error       { return nil }
func (m *bookingWriteFails) SaveTheatre(context.Context, model.Theatre) error { return nil }
func (m *bookingWriteFails) SaveShow(context.Context, model.Show) error       { return nil }
func (m *bookingWriteFails) SaveShowSeats(context.Context, uint64, int, int) error {
	return nil
}
func (m *bookingWriteFails) SaveBooking(context.Context, model.Booking) error {
	if m.fail {
		return errors.New("write timeout")
	}
	return nil
}

func TestBooking_CompensatesFailedWrites(t *testing.T) {
	ctx := context.Background()
	mirror := &bookingWriteFails{}
	e := newEnv(t, repository.WithMirror(mirror))
	u := e.user(t, "ann@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 5)
	bk, err := e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 2})
	require.NoError(t, err)

	mirror.fail = true
	_, err = e.bookings.Create(ctx, model.BookingInput{UserID: u.ID, ShowID: sh.ID, Seats: 2})
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Equal(t, 3, e.seats(t, sh.ID))

	seats := 4
	_, err = e.bookings.Update(ctx, bk.ID, model.BookingPatch{Seats: &seats})
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Equal(t, 3, e.seats(t, sh.ID))

	_, err = e.bookings.Cancel(ctx, bk.ID)
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Equal(t, 3, e.seats(t, sh.ID))
	got, _ := e.bookings.Get(ctx, bk.ID)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	e.assertBalanced(t)
}

func TestBooking_ListFilters(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.user(t, "ann@example.com")
	b := e.user(t, "bob@example.com")
	sh := e.show(t, e.theatre(t, "Cineplex").ID, "Dune", tomorrow, 100, 10)
	_, _ = e.bookings.Create(ctx, model.BookingInput{UserID: a.ID, ShowID: sh.ID, Seats: 1})
	_, _ = e.bookings.Create(ctx, model.BookingInput{UserID: b.ID, ShowID: sh.ID, Seats: 1, Status: model.BookingCancelled})

	got, err := e.bookings.List(ctx, model.BookingFilter{UserID: a.ID})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	got, err = e.bookings.List(ctx, model.BookingFilter{Status: model.BookingCancelled})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].UserID)
	_, err = e.bookings.List(ctx, model.BookingFilter{Status: "LOST"})
	assert.ErrorIs(t, err, model.ErrValidation)
}
