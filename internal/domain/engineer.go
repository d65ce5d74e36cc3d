package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for holidays and booking days.
const DateLayout = "2006-01-02"

// WorkingHours declares a working window for one weekday.
type WorkingHours struct {
	Weekday time.Weekday `json:"weekday"`
	Start   ClockTime    `json:"start"`
	End     ClockTime    `json:"end"`
}

// Engineer is an assignable field technician.
type Engineer struct {
	ID             string
	Name           string
	Specialization string
	WorkingHours   []WorkingHours
	Holidays       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HoursOn returns the working window for weekday, if any.
func (e *Engineer) HoursOn(day time.Weekday) (WorkingHours, bool) {
	for _, wh := range e.WorkingHours {
		if wh.Weekday == day && wh.End > wh.Start {
			return wh, true
		}
	}
	return WorkingHours{}, false
}

// IsHoliday reports whether the date (YYYY-MM-DD) is a declared holiday.
func (e *Engineer) IsHoliday(date string) bool {
	for _, h := range e.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// ParseWeekday accepts english weekday names or their three-letter forms.
func ParseWeekday(raw string) (time.Weekday, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if needle == name || needle == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// EngineerWorkload is the derived view the router ranks on.
type EngineerWorkload struct {
	Engineer    Engineer
	OpenTickets int
	LastTicket  *LastTicket
}
