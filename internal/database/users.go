package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/visabot-io/visabot/internal/models"
)

// ErrUserNotFound is returned when a lookup or update matches no record.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, password, favorite_food, pet_name, sibling, email, consular_post, check_days, status, created_at, last_checked`

// CreateUser inserts a new user record, assigning an ID if absent and filling
// registration defaults.
func (db *DB) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.ConsularPost == "" {
		user.ConsularPost = "ABU DHABI"
	}
	if user.CheckDays == 0 {
		user.CheckDays = 1000
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.LastChecked == "" {
		user.LastChecked = models.NowUTCString()
	}

	query := db.rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := db.conn.Exec(query,
		user.ID, user.Username, user.Password,
		user.FavoriteFood, user.PetName, user.Sibling,
		user.Email, user.ConsularPost, user.CheckDays,
		user.Status, user.CreatedAt, user.LastChecked,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID fetches a single user record.
func (db *DB) GetUserByID(id string) (*models.User, error) {
	query := db.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	user, err := scanUser(db.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// ListPendingUsers returns every record still in the pending state.
func (db *DB) ListPendingUsers() ([]*models.User, error) {
	query := db.rebind(`SELECT ` + userColumns + ` FROM users WHERE status = ? ORDER BY created_at`)
	rows, err := db.conn.Query(query, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateStatus moves a user between lifecycle states. A booked record is
// terminal: it is never reverted to pending.
func (db *DB) UpdateStatus(id string, status models.Status) error {
	query := db.rebind(`UPDATE users SET status = ? WHERE id = ? AND status <= ?`)
	res, err := db.conn.Exec(query, status, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status for user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, lookupErr := db.GetUserByID(id); lookupErr != nil {
			return lookupErr
		}
	}
	return nil
}

// UpdateLastChecked stamps the record with the current UTC time.
func (db *DB) UpdateLastChecked(id string) error {
	query := db.rebind(`UPDATE users SET last_checked = ? WHERE id = ?`)
	if _, err := db.conn.Exec(query, models.NowUTCString(), id); err != nil {
		return fmt.Errorf("failed to update last_checked for user %s: %w", id, err)
	}
	return nil
}

// DeleteUser removes a record entirely.
func (db *DB) DeleteUser(id string) error {
	query := db.rebind(`DELETE FROM users WHERE id = ?`)
	res, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Password,
		&user.FavoriteFood, &user.PetName, &user.Sibling,
		&user.Email, &user.ConsularPost, &user.CheckDays,
		&user.Status, &user.CreatedAt, &user.LastChecked,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
