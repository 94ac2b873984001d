// Package seed loads an initial catalog from a JSON document of the form
// {"users":[], "theatres":[], "shows":[], "bookings":[]}.  Records go
// through the services, so a seeded booking reserves seats like any other.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
)

// Document ids are local to the file.  References between records use them
// and are translated to the ids the store assigns.
type Document struct {
	Users    []UserRecord    `json:"users"`
	Theatres []TheatreRecord `json:"theatres"`
	Shows    []ShowRecord    `json:"shows"`
	Bookings []BookingRecord `json:"bookings"`
}

type UserRecord struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type TheatreRecord struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	City       string `json:"city"`
	Address    string `json:"address"`
	TotalSeats int    `json:"totalSeats"`
}

type ShowRecord struct {
	ID             uint64          `json:"id"`
	MovieTitle     string          `json:"movieTitle"`
	TheatreID      uint64          `json:"theatreId"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Price          decimal.Decimal `json:"price"`
	SeatsAvailable int             `json:"seatsAvailable"`
	Language       string          `json:"language"`
	Screen         string          `json:"screen"`
}

type BookingRecord struct {
	ID            uint64           `json:"id"`
	UserID        uint64           `json:"userId"`
	ShowID        uint64           `json:"showId"`
	Seats         int              `json:"seats"`
	Status        string           `json:"status"`
	PricePerSeat  *decimal.Decimal `json:"pricePerSeat"`
	SeatsSelected []string         `json:"seatsSelected"`
}

// Services are the write paths the loader drives.
type Services struct {
	Users    *service.UserService
	Theatres *service.TheatreService
	Shows    *service.ShowService
	Bookings *service.BookingService
}

// Result counts the records created and those rejected.
type Result struct {
	Users, Theatres, Shows, Bookings int
	Skipped                          int
}

// LoadFile reads path and loads it with Load.
func LoadFile(ctx context.Context, path string, svc Services, logger *log.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Load(ctx, f, svc, logger)
}

// Load seeds an empty store.  When users already exist nothing is loaded.
// A record that fails validation, or references a record that was not
// loaded, is logged and skipped.
func Load(ctx context.Context, r io.Reader, svc Services, logger *log.Logger) (Result, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Result{}, fmt.Errorf("decode seed document: %w", err)
	}
	if len(svc.Users.List(ctx, model.UserFilter{})) > 0 {
		logger.Infoj(log.JSON{"msg": "data already present, skipping seed"})
		return Result{}, nil
	}

	var res Result
	skip := func(kind string, id uint64, err error) {
		res.Skipped++
		logger.Warnj(log.JSON{"msg": "seed record skipped", "kind": kind, "id": id, "error": err.Error()})
	}

	users := map[uint64]uint64{}
	for _, u := range doc.Users {
		created, err := svc.Users.Create(ctx, model.UserInput{Name: u.Name, Email: u.Email, Phone: u.Phone, Password: u.Password})
		if err != nil {
			skip("user", u.ID, err)
			continue
		}
		users[u.ID] = created.ID
		res.Users++
	}

	theatres := map[uint64]uint64{}
	for _, t := range doc.Theatres {
		created, err := svc.Theatres.Create(ctx, model.TheatreInput{Name: t.Name, City: t.City, Address: t.Address, TotalSeats: t.TotalSeats})
		if err != nil {
			skip("theatre", t.ID, err)
			continue
		}
		theatres[t.ID] = created.ID
		res.Theatres++
	}

	shows := map[uint64]uint64{}
	for _, s := range doc.Shows {
		theatreID, ok := theatres[s.TheatreID]
		if !ok {
			skip("show", s.ID, model.ErrTheatreNotFound)
			continue
		}
		created, err := svc.Shows.Create(ctx, model.ShowInput{
			MovieTitle:     s.MovieTitle,
			TheatreID:      theatreID,
			Date:           s.Date,
			Time:           s.Time,
			Price:          s.Price,
			SeatsAvailable: s.SeatsAvailable,
			Language:       s.Language,
			Screen:         s.Screen,
		})
		if err != nil {
			skip("show", s.ID, err)
			continue
		}
		shows[s.ID] = created.ID
		res.Shows++
	}

	for _, b := range doc.Bookings {
		userID, ok := users[b.UserID]
		if !ok {
			skip("booking", b.ID, model.ErrUserNotFound)
			continue
		}
		showID, ok := shows[b.ShowID]
		if !ok {
			skip("booking", b.ID, model.ErrShowNotFound)
			continue
		}
		_, err := svc.Bookings.Create(ctx, model.BookingInput{
			UserID:        userID,
			ShowID:        showID,
			Seats:         b.Seats,
			Status:        model.BookingStatus(b.Status),
			PricePerSeat:  b.PricePerSeat,
			SeatsSelected: b.SeatsSelected,
		})
		if err != nil {
			skip("booking", b.ID, err)
			continue
		}
		res.Bookings++
	}

	// The document's seatsAvailable is the state after its bookings.  Adjust
	// moves capacity so reserved seats stay accounted for.
	for _, s := range doc.Shows {
		id, ok := shows[s.ID]
		if !ok {
			continue
		}
		cur, err := svc.Shows.Get(ctx, id)
		if err != nil || cur.SeatsAvailable == s.SeatsAvailable {
			continue
		}
		want := s.SeatsAvailable
		if _, err := svc.Shows.Update(ctx, id, model.ShowPatch{SeatsAvailable: &want}); err != nil {
			logger.Warnj(log.JSON{"msg": "seed seat count not applied", "show": id, "error": err.Error()})
		}
	}

	logger.Infoj(log.JSON{
		"msg":      "seed loaded",
		"users":    res.Users,
		"theatres": res.Theatres,
		"shows":    res.Shows,
		"bookings": res.Bookings,
		"skipped":  res.Skipped,
	})
	return res, nil
}
