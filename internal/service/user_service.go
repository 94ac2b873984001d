package service

import (
	"context"
	"strings"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
	"github.com/iliyamo/cinema-booking-inventory/internal/utils"
	"github.com/iliyamo/cinema-booking-inventory/internal/validation"
)

// UserService validates user input before it reaches the store.
type UserService struct {
	repo       *repository.UserRepo
	bcryptCost int
}

func NewUserService(store *repository.Store, bcryptCost int) *UserService {
	return &UserService{repo: store.Users(), bcryptCost: bcryptCost}
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, f model.UserFilter) []model.User {
	return s.repo.List(ctx, f)
}

// Create checks name, email and phone, hashes the optional password and
// stores the user.
func (s *UserService) Create(ctx context.Context, in model.UserInput) (model.User, error) {
	u := model.User{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return model.User{}, err
		}
		u.PasswordHash = hash
	}
	return s.repo.Create(ctx, u)
}

// Update applies the non-nil fields of p.
func (s *UserService) Update(ctx context.Context, id uint64, p model.UserPatch) (model.User, error) {
	var hash string
	if p.Password != nil && *p.Password != "" {
		var err error
		if hash, err = s.hash(*p.Password); err != nil {
			return model.User{}, err
		}
	}
	return s.repo.Update(ctx, id, func(u *model.User) error {
		if p.Name != nil {
			u.Name = strings.TrimSpace(*p.Name)
		}
		if p.Email != nil {
			u.Email = strings.TrimSpace(*p.Email)
		}
		if p.Phone != nil {
			u.Phone = strings.TrimSpace(*p.Phone)
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return validateUser(*u)
	})
}

// Delete removes a user that no booking refers to.
func (s *UserService) Delete(ctx context.Context, id uint64) error {
	return s.repo.Delete(ctx, id)
}

func (s *UserService) hash(plain string) (string, error) {
	if err := validation.Var("password", plain, "min=6,max=72"); err != nil {
		return "", err
	}
	return utils.HashPassword(plain, s.bcryptCost)
}

func validateUser(u model.User) error {
	if u.Name == "" {
		return model.Invalid("name is required")
	}
	if err := validation.Var("email", u.Email, "required,email"); err != nil {
		return err
	}
	return validation.Var("phone", u.Phone, "len=10,number")
}
