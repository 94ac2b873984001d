package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-booking-inventory/internal/inventory"
	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
)

// ShowService validates show input and routes seat counter changes through
// the inventory manager.
type ShowService struct {
	repo *repository.ShowRepo
	inv  *inventory.Manager
	cal  model.Calendar
}

func NewShowService(store *repository.Store, inv *inventory.Manager, cal model.Calendar) *ShowService {
	return &ShowService{repo: store.Shows(), inv: inv, cal: cal}
}

func (s *ShowService) Get(ctx context.Context, id uint64) (model.Show, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns shows matching f.  FutureOnly is evaluated against today in
// the service's calendar.
func (s *ShowService) List(ctx context.Context, f model.ShowFilter) ([]model.Show, error) {
	if f.Date != "" && !model.ValidDate(f.Date) {
		return nil, model.Invalid("date must match layout %s", model.DateLayout)
	}
	f.Today = s.cal.Today()
	return s.repo.List(ctx, f), nil
}

// Create schedules a show.  Its capacity is the initial seatsAvailable.
func (s *ShowService) Create(ctx context.Context, in model.ShowInput) (model.Show, error) {
	sh := model.Show{
		MovieTitle:     strings.TrimSpace(in.MovieTitle),
		TheatreID:      in.TheatreID,
		Date:           strings.TrimSpace(in.Date),
		Time:           strings.TrimSpace(in.Time),
		Price:          in.Price,
		Capacity:       in.SeatsAvailable,
		SeatsAvailable: in.SeatsAvailable,
		Language:       strings.TrimSpace(in.Language),
		Screen:         strings.TrimSpace(in.Screen),
	}
	if err := validateShow(sh); err != nil {
		return model.Show{}, err
	}
	if sh.SeatsAvailable < 0 || sh.SeatsAvailable > model.MaxShowCapacity {
		return model.Show{}, model.Invalid("seatsAvailable must be between 0 and %d", model.MaxShowCapacity)
	}
	if s.cal.IsPast(sh.Date) {
		return model.Show{}, fmt.Errorf("%w: %s is before today", model.ErrShowPast, sh.Date)
	}
	return s.repo.Create(ctx, sh)
}

// Update changes show attributes and, through the inventory manager, its
// seat counters.  When the seat change is rejected the attribute change is
// rolled back.
func (s *ShowService) Update(ctx context.Context, id uint64, p model.ShowPatch) (model.Show, error) {
	if (p.SeatsAvailable != nil && *p.SeatsAvailable < 0) || (p.Capacity != nil && *p.Capacity < 0) {
		return model.Show{}, model.Invalid("seat counts must not be negative")
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Show{}, err
	}
	if p.Date != nil && *p.Date != before.Date && model.ValidDate(*p.Date) && s.cal.IsPast(*p.Date) {
		return model.Show{}, fmt.Errorf("%w: %s is before today", model.ErrShowPast, *p.Date)
	}
	updated := before
	if hasShowAttributes(p) {
		updated, err = s.repo.Update(ctx, id, func(sh *model.Show) error {
			applyShowPatch(sh, p)
			return validateShow(*sh)
		})
		if err != nil {
			return model.Show{}, err
		}
	}

	if !seatsChange(updated, p) {
		return updated, nil
	}
	adjusted, err := s.inv.Adjust(ctx, id, p.SeatsAvailable, p.Capacity)
	if err != nil {
		if hasShowAttributes(p) {
			if _, rerr := s.repo.Update(ctx, id, func(sh *model.Show) error {
				restoreAttributes(sh, before)
				return nil
			}); rerr != nil {
				return model.Show{}, fmt.Errorf("%w: show %d: %v (rollback: %v)", model.ErrInternal, id, err, rerr)
			}
		}
		return model.Show{}, err
	}
	return adjusted, nil
}

// Delete removes a show no booking refers to and drops its seat counter.
func (s *ShowService) Delete(ctx context.Context, id uint64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.inv.Retire(id)
	return nil
}

func hasShowAttributes(p model.ShowPatch) bool {
	return p.MovieTitle != nil || p.TheatreID != nil || p.Date != nil || p.Time != nil ||
		p.Price != nil || p.Language != nil || p.Screen != nil
}

// seatsChange reports whether p asks for counters different from cur.
// Clients that echo the full show back do not trigger an adjustment.
func seatsChange(cur model.Show, p model.ShowPatch) bool {
	return (p.SeatsAvailable != nil && *p.SeatsAvailable != cur.SeatsAvailable) ||
		(p.Capacity != nil && *p.Capacity != cur.Capacity)
}

func applyShowPatch(sh *model.Show, p model.ShowPatch) {
	if p.MovieTitle != nil {
		sh.MovieTitle = strings.TrimSpace(*p.MovieTitle)
	}
	if p.TheatreID != nil {
		sh.TheatreID = *p.TheatreID
	}
	if p.Date != nil {
		sh.Date = strings.TrimSpace(*p.Date)
	}
	if p.Time != nil {
		sh.Time = strings.TrimSpace(*p.Time)
	}
	if p.Price != nil {
		sh.Price = *p.Price
	}
	if p.Language != nil {
		sh.Language = strings.TrimSpace(*p.Language)
	}
	if p.Screen != nil {
		sh.Screen = strings.TrimSpace(*p.Screen)
	}
}

func restoreAttributes(sh *model.Show, before model.Show) {
	sh.MovieTitle, sh.TheatreID = before.MovieTitle, before.TheatreID
	sh.Date, sh.Time, sh.Price = before.Date, before.Time, before.Price
	sh.Language, sh.Screen = before.Language, before.Screen
}

func validateShow(sh model.Show) error {
	switch {
	case sh.MovieTitle == "":
		return model.Invalid("movieTitle is required")
	case sh.TheatreID == 0:
		return model.Invalid("theatreId is required")
	case !model.ValidDate(sh.Date):
		return model.Invalid("date must match layout %s", model.DateLayout)
	case !model.ValidTime(sh.Time):
		return model.Invalid("time must match layout %s", model.TimeLayout)
	case sh.Price.IsNegative():
		return model.Invalid("price must not be negative")
	}
	return nil
}
