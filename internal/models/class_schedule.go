package models

import "time"

type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceWeekly Recurrence = "weekly"
)

type ClassSchedule struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"not null" json:"name"`
	Instructor      string     `gorm:"not null" json:"instructor"`
	Description     string     `gorm:"type:text" json:"description"`
	Location        string     `json:"location"`
	StartsAt        time.Time  `gorm:"not null" json:"starts_at"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	Capacity        int        `gorm:"not null" json:"capacity"`
	Recurrence      Recurrence `gorm:"type:varchar(10);not null;default:'none'" json:"recurrence"`
	RecursUntil     *time.Time `json:"recurs_until,omitempty"`
	Active          bool       `gorm:"not null" json:"active"`
	ImageKey        string     `json:"image_key"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OccursOn reports whether the schedule has an occurrence on the given calendar date.
// Dates are compared in UTC.
func (c *ClassSchedule) OccursOn(date time.Time) bool {
	day := truncateDay(date)
	first := truncateDay(c.StartsAt)

	if c.Recurrence != RecurrenceWeekly {
		return day.Equal(first)
	}
	if day.Before(first) || day.Weekday() != first.Weekday() {
		return false
	}
	if c.RecursUntil != nil && day.After(truncateDay(*c.RecursUntil)) {
		return false
	}
	return true
}

// OccurrenceStart returns the start instant of the occurrence on date.
func (c *ClassSchedule) OccurrenceStart(date time.Time) time.Time {
	s := c.StartsAt.UTC()
	d := truncateDay(date)
	return time.Date(d.Year(), d.Month(), d.Day(), s.Hour(), s.Minute(), s.Second(), 0, time.UTC)
}

// Occurrences returns up to n occurrence dates on or after from.
func (c *ClassSchedule) Occurrences(from time.Time, n int) []time.Time {
	var out []time.Time
	if n <= 0 {
		return out
	}
	first := truncateDay(c.StartsAt)
	day := truncateDay(from)
	if day.Before(first) {
		day = first
	}

	if c.Recurrence != RecurrenceWeekly {
		if !day.After(first) {
			out = append(out, first)
		}
		return out
	}

	// align to the schedule's weekday
	offset := (int(first.Weekday()) - int(day.Weekday()) + 7) % 7
	day = day.AddDate(0, 0, offset)
	for len(out) < n && c.OccursOn(day) {
		out = append(out, day)
		day = day.AddDate(0, 0, 7)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
