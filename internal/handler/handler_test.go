package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-inventory/internal/inventory"
	"github.com/iliyamo/cinema-booking-inventory/internal/model"
	"github.com/iliyamo/cinema-booking-inventory/internal/repository"
	"github.com/iliyamo/cinema-booking-inventory/internal/service"
	"github.com/iliyamo/cinema-booking-inventory/internal/validation"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cal := model.Calendar{
		Now:      func() time.Time { return time.Date(2030, 5, 10, 12, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
	store := repository.NewStore()
	inv := inventory.NewManager(store.Shows(), cal)
	logger := log.New("test")
	logger.SetOutput(io.Discard)
	bookings := service.NewBookingService(store, inv, cal, service.NopPublisher{}, logger)
	t.Cleanup(bookings.Close)

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.Validator = validation.Echo{}

	uh := NewUserHandler(service.NewUserService(store, 4))
	th := NewTheatreHandler(service.NewTheatreService(store))
	sh := NewShowHandler(service.NewShowService(store, inv, cal))
	bh := NewBookingHandler(bookings)

	e.GET("/users", uh.List)
	e.POST("/users", uh.Create)
	e.GET("/users/:id", uh.Get)
	e.PATCH("/users/:id", uh.Update)
	e.DELETE("/users/:id", uh.Delete)
	e.POST("/theatres", th.Create)
	e.GET("/theatres", th.List)
	e.DELETE("/theatres/:id", th.Delete)
	e.POST("/shows", sh.Create)
	e.GET("/shows", sh.List)
	e.GET("/shows/:id", sh.Get)
	e.PATCH("/shows/:id", sh.Update)
	e.DELETE("/shows/:id", sh.Delete)
	e.POST("/bookings", bh.Create)
	e.GET("/bookings", bh.List)
	e.GET("/bookings/:id", bh.Get)
	e.PATCH("/bookings/:id", bh.Update)
	e.POST("/bookings/:id/cancel", bh.Cancel)
	e.DELETE("/bookings/:id", bh.Delete)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed creates a user, a theatre and a show with the given seat count.
func seed(t *testing.T, e *echo.Echo, seats string) {
	t.Helper()
	rec := do(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","phone":"5551234567"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(e, http.MethodPost, "/theatres", `{"name":"Rex","city":"Oslo","address":"Main street 1","totalSeats":100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(e, http.MethodPost, "/shows", `{"movieTitle":"Dune","theatreId":1,"date":"2030-05-12","time":"20:00","price":300,"seatsAvailable":`+seats+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUsers_CreateValidation(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/users", `{"name":"Ana","email":"nope","phone":"5551234567"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "email")

	rec = do(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","phone":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/users", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","phone":"5551234567","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["id"])
	assert.NotContains(t, body, "passwordHash")

	rec = do(e, http.MethodPost, "/users", `{"name":"Bo","email":"ANA@example.com","phone":"5551234567"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUsers_GetPatchDelete(t *testing.T) {
	e := newTestServer(t)
	do(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","phone":"5551234567"}`)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/users/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/users/abc", "").Code)

	rec := do(e, http.MethodPatch, "/users/1", `{"name":"Ana B"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana B", decode(t, rec)["name"])

	rec = do(e, http.MethodGet, "/users?email=ana@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/users/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/users/1", "").Code)
}

func TestShows_CreateAndList(t *testing.T) {
	e := newTestServer(t)
	seed(t, e, "100")

	rec := do(e, http.MethodPost, "/shows", `{"movieTitle":"Old","theatreId":1,"date":"2030-05-09","time":"20:00","price":300,"seatsAvailable":10}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/shows", `{"movieTitle":"Bad","theatreId":1,"date":"12/05/2030","time":"20:00","price":300,"seatsAvailable":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/shows", `{"movieTitle":"NoSeats","theatreId":1,"date":"2030-05-12","time":"20:00","price":300}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/shows", `{"movieTitle":"dune","theatreId":1,"date":"2030-05-12","time":"20:00","price":300,"seatsAvailable":10}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodGet, "/shows?movieTitle=DUN&futureOnly=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var shows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shows))
	require.Len(t, shows, 1)
	assert.EqualValues(t, 300, shows[0]["price"])
	assert.EqualValues(t, 100, shows[0]["seatsAvailable"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/shows?theatreId=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/shows?futureOnly=maybe", "").Code)
}

func TestBookings_Lifecycle(t *testing.T) {
	e := newTestServer(t)
	seed(t, e, "100")

	rec := do(e, http.MethodPost, "/bookings", `{"userId":1,"showId":1,"seats":3,"seatsSelected":["A1","A2","A3"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode(t, rec)
	assert.Equal(t, "CONFIRMED", b["status"])
	assert.EqualValues(t, 900, b["totalPrice"])

	rec = do(e, http.MethodGet, "/shows/1", "")
	assert.EqualValues(t, 97, decode(t, rec)["seatsAvailable"])

	rec = do(e, http.MethodPatch, "/bookings/1", `{"seats":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1500, decode(t, rec)["totalPrice"])

	rec = do(e, http.MethodPost, "/bookings/1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode(t, rec)["status"])

	rec = do(e, http.MethodGet, "/shows/1", "")
	assert.EqualValues(t, 100, decode(t, rec)["seatsAvailable"])

	rec = do(e, http.MethodPatch, "/bookings/1", `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodGet, "/bookings?status=CANCELLED&userId=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/bookings/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/bookings/1", "").Code)
}

func TestBookings_ErrorStatuses(t *testing.T) {
	e := newTestServer(t)
	seed(t, e, "2")

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing seats", `{"userId":1,"showId":1}`, http.StatusBadRequest},
		{"zero seats", `{"userId":1,"showId":1,"seats":0}`, http.StatusBadRequest},
		{"bad status", `{"userId":1,"showId":1,"seats":1,"status":"PENDING"}`, http.StatusBadRequest},
		{"unknown user", `{"userId":7,"showId":1,"seats":1}`, http.StatusNotFound},
		{"unknown show", `{"userId":1,"showId":7,"seats":1}`, http.StatusNotFound},
		{"too many seats", `{"userId":1,"showId":1,"seats":3}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/bookings", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}

	rec := do(e, http.MethodGet, "/shows/1", "")
	assert.EqualValues(t, 2, decode(t, rec)["seatsAvailable"])
}

func TestShows_DeleteRestrictedByBookings(t *testing.T) {
	e := newTestServer(t)
	seed(t, e, "10")
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/bookings", `{"userId":1,"showId":1,"seats":1}`).Code)

	assert.Equal(t, http.StatusConflict, do(e, http.MethodDelete, "/shows/1", "").Code)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodDelete, "/theatres/1", "").Code)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodDelete, "/users/1", "").Code)

	require.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/bookings/1", "").Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/shows/1", "").Code)
}

func TestShows_PatchSeats(t *testing.T) {
	e := newTestServer(t)
	seed(t, e, "10")
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/bookings", `{"userId":1,"showId":1,"seats":4}`).Code)

	rec := do(e, http.MethodPatch, "/shows/1", `{"capacity":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPatch, "/shows/1", `{"seatsAvailable":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 20, body["seatsAvailable"])
	assert.EqualValues(t, 24, body["capacity"])

	rec = do(e, http.MethodPatch, "/shows/1", `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPatch, "/shows/1", `{"seatsAvailable":9223372036854775807}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body = decode(t, do(e, http.MethodGet, "/shows/1", ""))
	assert.EqualValues(t, 24, body["capacity"])
}

func TestReady(t *testing.T) {
	e := echo.New()
	ok := ReadyHandler{Checks: map[string]Check{"store": func(context.Context) error { return nil }}}
	e.GET("/readyz", ok.Ready)
	e.GET("/healthz", Health)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/readyz", "").Code)

	e2 := echo.New()
	bad := ReadyHandler{Checks: map[string]Check{"db": func(context.Context) error { return errors.New("down") }}}
	e2.GET("/readyz", bad.Ready)
	rec := do(e2, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}
