package domain

import (
	"time"
)

// Contact is a personal record owned by exactly one account.
type Contact struct {
	ID         int64     `json:"id"`
	ConsumerID int64     `json:"consumer_id"`
	FirstName  string    `json:"first_name"`
	SecondName string    `json:"second_name"`
	EmailAdd   string    `json:"email_add"`
	PhoneNum   string    `json:"phone_num"`
	BirthDate  time.Time `json:"birth_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Consumer is the owning account, populated by reads that join accounts.
	Consumer *Account `json:"consumer,omitempty"`
}

// ContactFilter holds optional equality filters for contact search. Empty
// fields are ignored.
type ContactFilter struct {
	FirstName  string
	SecondName string
	EmailAdd   string
}

// BirthdayKeys returns the "MM-DD" keys of every calendar day from "from"
// through "from" plus days, inclusive. The window wraps across the year end.
// When it covers 28 February of a non-leap year, 29 February is included so
// leap-day birthdays are not skipped.
func BirthdayKeys(from time.Time, days int) []string {
	if days < 0 {
		days = 0
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	keys := make([]string, 0, days+2)
	for i := 0; i <= days; i++ {
		d := start.AddDate(0, 0, i)
		keys = append(keys, d.Format("01-02"))
		if d.Month() == time.February && d.Day() == 28 && !isLeapYear(d.Year()) {
			keys = append(keys, "02-29")
		}
	}
	return keys
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
