package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
)

// minAddressLen is the shortest address accepted for a theatre.
const minAddressLen = 5

type TheatreService struct {
	repo *repository.TheatreRepo
}

func NewTheatreService(store *repository.Store) *TheatreService {
	return &TheatreService{repo: store.Theatres()}
}

func (s *TheatreService) Get(ctx context.Context, id uint64) (model.Theatre, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TheatreService) List(ctx context.Context, f model.TheatreFilter) []model.Theatre {
	return s.repo.List(ctx, f)
}

func (s *TheatreService) Create(ctx context.Context, in model.TheatreInput) (model.Theatre, error) {
	t := model.Theatre{
		Name:       strings.TrimSpace(in.Name),
		City:       strings.TrimSpace(in.City),
		Address:    strings.TrimSpace(in.Address),
		TotalSeats: in.TotalSeats,
	}
	if err := validateTheatre(t); err != nil {
		return model.Theatre{}, err
	}
	return s.repo.Create(ctx, t)
}

func (s *TheatreService) Update(ctx context.Context, id uint64, p model.TheatrePatch) (model.Theatre, error) {
	return s.repo.Update(ctx, id, func(t *model.Theatre) error {
		if p.Name != nil {
			t.Name = strings.TrimSpace(*p.Name)
		}
		if p.City != nil {
			t.City = strings.TrimSpace(*p.City)
		}
		if p.Address != nil {
			t.Address = strings.TrimSpace(*p.Address)
		}
		if p.TotalSeats != nil {
			t.TotalSeats = *p.TotalSeats
		}
		return validateTheatre(*t)
	})
}

// Delete removes a theatre that hosts no shows.
func (s *TheatreService) Delete(ctx context.Context, id uint64) error {
	return s.repo.Delete(ctx, id)
}

func validateTheatre(t model.Theatre) error {
	switch {
	case t.Name == "":
		return model.Invalid("name is required")
	case t.City == "":
		return model.Invalid("city is required")
	case utf8.RuneCountInString(t.Address) < minAddressLen:
		return model.Invalid("address must be at least %d characters", minAddressLen)
	case t.TotalSeats < 0:
		return model.Invalid("totalSeats must not be negative")
	}
	return nil
}
