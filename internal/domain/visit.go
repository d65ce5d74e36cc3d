package domain

import "time"

// Visit timing rules.
const (
	VisitDuration = time.Hour
	VisitGap      = time.Hour
)

// VisitBooking reserves an engineer for an on-site visit.
type VisitBooking struct {
	ID           string
	EngineerID   string
	Date         string
	StartTime    time.Time
	EndTime      time.Time
	TicketID     string
	TicketNumber string
	CompanyName  string
	CreatedAt    time.Time
}

// Slot is one candidate start time on the engineer's grid.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	BlockedBy string `json:"blocked_by,omitempty"`
}

// BookingSummary describes an existing booking on the slot grid.
type BookingSummary struct {
	Time         string `json:"time"`
	TicketNumber string `json:"ticket_number"`
	CompanyName  string `json:"company_name"`
}

// SlotReport is the availability of an engineer on one day.
type SlotReport struct {
	EngineerID   string           `json:"engineer_id"`
	Date         string           `json:"date"`
	IsWorkingDay bool             `json:"is_working_day"`
	IsHoliday    bool             `json:"is_holiday"`
	WorkStart    string           `json:"work_start,omitempty"`
	WorkEnd      string           `json:"work_end,omitempty"`
	Slots        []Slot           `json:"slots"`
	Bookings     []BookingSummary `json:"bookings"`
}
