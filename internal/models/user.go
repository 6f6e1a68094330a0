package models

import (
	"time"
)

// Status tracks where a user is in the booking lifecycle.
type Status int

const (
	// StatusPending means the user still needs appointment checks.
	StatusPending Status = 0
	// StatusBooked means an appointment was submitted; the record is terminal
	// and never dispatched again.
	StatusBooked Status = 1
)

// User represents a registered applicant whose appointment the bot checks.
type User struct {
	ID           string `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Password     string `json:"-" db:"password"`
	FavoriteFood string `json:"favorite_food" db:"favorite_food"`
	PetName      string `json:"pet_name" db:"pet_name"`
	Sibling      string `json:"sibling" db:"sibling"`
	Email        string `json:"email" db:"email"`
	ConsularPost string `json:"consular_post" db:"consular_post"`
	CheckDays    int    `json:"check_days" db:"check_days"`
	Status       Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	// LastChecked is kept as the raw stored string; timestamps written by
	// external registrars arrive in several formats, and the scheduler treats
	// an unparsable value as due rather than rejecting the record.
	LastChecked string `json:"last_checked" db:"last_checked"`
}

// IsPending returns true if the user is still eligible for appointment runs.
func (u *User) IsPending() bool {
	return u.Status == StatusPending
}

// ParseLastChecked parses the stored last_checked timestamp. It accepts the
// formats seen in practice from registrars and databases.
func ParseLastChecked(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999-07",
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NowUTCString formats the current time the way last_checked is stored.
func NowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
