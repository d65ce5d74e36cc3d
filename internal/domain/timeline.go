package domain

import "time"

// TimelineEntryType enumerates timeline event kinds.
type TimelineEntryType string

const (
	TimelineTicketCreated TimelineEntryType = "ticket_created"
	TimelineStageChange   TimelineEntryType = "stage_change"
	TimelineComment       TimelineEntryType = "comment"
	TimelineAssignment    TimelineEntryType = "assignment"
	TimelineTaskCompleted TimelineEntryType = "task_completed"
)

// TimelineEntry is an append-only record on a ticket.
type TimelineEntry struct {
	ID          string
	TicketID    string
	Type        TimelineEntryType
	Description string
	UserName    string
	IsInternal  bool
	CreatedAt   time.Time
}
