package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// Schema creates the mirror tables when they do not exist yet.  Ids are
// assigned by the in-memory store, so no column is AUTO_INCREMENT.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone CHAR(10) NOT NULL,
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS theatres (
		id BIGINT UNSIGNED PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		city VARCHAR(255) NOT NULL,
		address VARCHAR(512) NOT NULL,
		total_seats INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shows (
		id BIGINT UNSIGNED PRIMARY KEY,
		movie_title VARCHAR(255) NOT NULL,
		theatre_id BIGINT UNSIGNED NOT NULL,
		show_date CHAR(10) NOT NULL,
		show_time CHAR(5) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		capacity INT NOT NULL,
		seats_available INT NOT NULL,
		language VARCHAR(64) NOT NULL DEFAULT '',
		screen VARCHAR(64) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		show_id BIGINT UNSIGNED NOT NULL,
		seats INT NOT NULL,
		total_price DECIMAL(12,2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		seats_selected TEXT NULL,
		booking_time DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
}

// MySQLMirror writes every committed store mutation to MySQL and can load
// the full data set back at startup.  It implements Mirror.
type MySQLMirror struct {
	db *sql.DB
}

// NewMySQLMirror wraps an open connection pool.
func NewMySQLMirror(db *sql.DB) *MySQLMirror {
	return &MySQLMirror{db: db}
}

// EnsureSchema runs the CREATE TABLE statements in Schema.
func (m *MySQLMirror) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLMirror) SaveUser(ctx context.Context, u model.User) error {
	const q = `INSERT INTO users (id, name, email, phone, password_hash, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE name = VALUES(name), email = VALUES(email), phone = VALUES(phone),
	           password_hash = VALUES(password_hash), updated_at = VALUES(updated_at)`
	_, err := m.db.ExecContext(ctx, q, u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return err
}

func (m *MySQLMirror) DeleteUser(ctx context.Context, id uint64) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	return err
}

func (m *MySQLMirror) SaveTheatre(ctx context.Context, t model.Theatre) error {
	const q = `INSERT INTO theatres (id, name, city, address, total_seats, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE name = VALUES(name), city = VALUES(city), address = VALUES(address),
	           total_seats = VALUES(total_seats), updated_at = VALUES(updated_at)`
	_, err := m.db.ExecContext(ctx, q, t.ID, t.Name, t.City, t.Address, t.TotalSeats, t.CreatedAt, t.UpdatedAt)
	return err
}

func (m *MySQLMirror) DeleteTheatre(ctx context.Context, id uint64) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM theatres WHERE id = ?", id)
	return err
}

func (m *MySQLMirror) SaveShow(ctx context.Context, s model.Show) error {
	const q = `INSERT INTO shows (id, movie_title, theatre_id, show_date, show_time, price, capacity,
	           seats_available, language, screen, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE movie_title = VALUES(movie_title), theatre_id = VALUES(theatre_id),
	           show_date = VALUES(show_date), show_time = VALUES(show_time), price = VALUES(price),
	           language = VALUES(language), screen = VALUES(screen), updated_at = VALUES(updated_at)`
	_, err := m.db.ExecContext(ctx, q, s.ID, s.MovieTitle, s.TheatreID, s.Date, s.Time, s.Price,
		s.Capacity, s.SeatsAvailable, s.Language, s.Screen, s.CreatedAt, s.UpdatedAt)
	return err
}

// SaveShowSeats only touches the seat counters, so it never races with a
// concurrent metadata update of the same row.
func (m *MySQLMirror) SaveShowSeats(ctx context.Context, id uint64, capacity, available int) error {
	const q = "UPDATE shows SET capacity = ?, seats_available = ? WHERE id = ?"
	_, err := m.db.ExecContext(ctx, q, capacity, available, id)
	return err
}

func (m *MySQLMirror) DeleteShow(ctx context.Context, id uint64) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM shows WHERE id = ?", id)
	return err
}

func (m *MySQLMirror) SaveBooking(ctx context.Context, b model.Booking) error {
	const q = `INSERT INTO bookings (id, user_id, show_id, seats, total_price, status, seats_selected,
	           booking_time, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), show_id = VALUES(show_id),
	           seats = VALUES(seats), total_price = VALUES(total_price), status = VALUES(status),
	           seats_selected = VALUES(seats_selected), updated_at = VALUES(updated_at)`
	selected, err := encodeSeatLabels(b.SeatsSelected)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, q, b.ID, b.UserID, b.ShowID, b.Seats, b.TotalPrice, string(b.Status),
		selected, b.BookingTime, b.UpdatedAt)
	return err
}

func (m *MySQLMirror) DeleteBooking(ctx context.Context, id uint64) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	return err
}

// Load reads every table into a Snapshot suitable for Store.Restore.
func (m *MySQLMirror) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Users, err = m.loadUsers(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load users: %w", err)
	}
	if snap.Theatres, err = m.loadTheatres(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load theatres: %w", err)
	}
	if snap.Shows, err = m.loadShows(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load shows: %w", err)
	}
	if snap.Bookings, err = m.loadBookings(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load bookings: %w", err)
	}
	return snap, nil
}

func (m *MySQLMirror) loadUsers(ctx context.Context) ([]model.User, error) {
	const q = `SELECT id, name, email, phone, password_hash, created_at, updated_at FROM users ORDER BY id`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (m *MySQLMirror) loadTheatres(ctx context.Context) ([]model.Theatre, error) {
	const q = `SELECT id, name, city, address, total_seats, created_at, updated_at FROM theatres ORDER BY id`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Theatre
	for rows.Next() {
		var t model.Theatre
		if err := rows.Scan(&t.ID, &t.Name, &t.City, &t.Address, &t.TotalSeats, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (m *MySQLMirror) loadShows(ctx context.Context) ([]model.Show, error) {
	const q = `SELECT id, movie_title, theatre_id, show_date, show_time, price, capacity, seats_available,
	           language, screen, created_at, updated_at FROM shows ORDER BY id`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.MovieTitle, &s.TheatreID, &s.Date, &s.Time, &s.Price, &s.Capacity,
			&s.SeatsAvailable, &s.Language, &s.Screen, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *MySQLMirror) loadBookings(ctx context.Context) ([]model.Booking, error) {
	const q = `SELECT id, user_id, show_id, seats, total_price, status, seats_selected, booking_time, updated_at
	           FROM bookings ORDER BY id`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var (
			b        model.Booking
			status   string
			selected sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowID, &b.Seats, &b.TotalPrice, &status, &selected,
			&b.BookingTime, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		if selected.Valid && selected.String != "" {
			if err := json.Unmarshal([]byte(selected.String), &b.SeatsSelected); err != nil {
				return nil, fmt.Errorf("booking %d seats_selected: %w", b.ID, err)
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// encodeSeatLabels stores seat labels as a JSON array, or NULL when absent.
func encodeSeatLabels(labels []string) (sql.NullString, error) {
	if len(labels) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
