package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/observability"
	"github.com/fieldops/msp-workflow/internal/persistence"
	"github.com/fieldops/msp-workflow/internal/repository"
	apperrors "github.com/fieldops/msp-workflow/pkg/util"
)

// Slot conflict reasons reported in error details.
const (
	SlotReasonNonWorkingDay       = "non_working_day"
	SlotReasonHoliday             = "holiday"
	SlotReasonOutsideWorkingHours = "outside_working_hours"
	SlotReasonGap                 = "gap_violation"
)

// SchedulingService computes engineer availability and reserves visit slots.
type SchedulingService struct {
	engineers   repository.EngineerRepository
	bookings    repository.VisitBookingRepository
	tx          repository.Transactor
	locker      persistence.Locker
	location    *time.Location
	granularity time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// SchedulingDependencies bundles collaborators for the slot engine.
type SchedulingDependencies struct {
	EngineerRepo     repository.EngineerRepository
	VisitBookingRepo repository.VisitBookingRepository
	Transactor       repository.Transactor
	Locker           persistence.Locker
	Location         *time.Location
	Granularity      time.Duration
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Now              func() time.Time
}

// ReserveSlotInput describes a visit reservation. EndTime may be zero, in which
// case it is derived from StartTime.
type ReserveSlotInput struct {
	EngineerID   string
	Date         string
	StartTime    time.Time
	EndTime      time.Time
	TicketID     string
	TicketNumber string
	CompanyName  string
}

// NewSchedulingService constructs the service.
func NewSchedulingService(deps SchedulingDependencies) *SchedulingService {
	svc := &SchedulingService{
		engineers:   deps.EngineerRepo,
		bookings:    deps.VisitBookingRepo,
		tx:          deps.Transactor,
		locker:      deps.Locker,
		location:    deps.Location,
		granularity: deps.Granularity,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if svc.granularity <= 0 {
		svc.granularity = 30 * time.Minute
	}
	if svc.locker == nil {
		svc.locker = persistence.NewKeyedMutex()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Location returns the timezone visit times are interpreted in.
func (s *SchedulingService) Location() *time.Location {
	return s.location
}

// GetAvailableSlots returns the engineer's candidate grid for date (YYYY-MM-DD).
// Non-working days and holidays are reported in the result, not as errors.
func (s *SchedulingService) GetAvailableSlots(ctx context.Context, engineerID, date string) (*domain.SlotReport, error) {
	day, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(date), s.location)
	if err != nil {
		return nil, apperrors.NewValidationError("date must be YYYY-MM-DD", map[string]any{"date": date})
	}
	engineer, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
		}
		return nil, apperrors.MapError(err)
	}

	report := &domain.SlotReport{
		EngineerID: engineerID,
		Date:       day.Format(domain.DateLayout),
		Slots:      []domain.Slot{},
		Bookings:   []domain.BookingSummary{},
	}
	if engineer.IsHoliday(report.Date) {
		report.IsHoliday = true
		return report, nil
	}
	hours, ok := engineer.HoursOn(day.Weekday())
	if !ok {
		return report, nil
	}
	report.IsWorkingDay = true
	report.WorkStart = hours.Start.String()
	report.WorkEnd = hours.End.String()

	existing, err := s.bookings.ListByEngineerDate(ctx, engineerID, report.Date)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, b := range existing {
		report.Bookings = append(report.Bookings, domain.BookingSummary{
			Time:         b.StartTime.In(s.location).Format("15:04"),
			TicketNumber: b.TicketNumber,
			CompanyName:  b.CompanyName,
		})
	}

	workStart := hours.Start.On(day, s.location)
	workEnd := hours.End.On(day, s.location)
	for candidate := workStart; !candidate.Add(domain.VisitDuration).After(workEnd); candidate = candidate.Add(s.granularity) {
		slot := domain.Slot{Time: candidate.Format("15:04"), Available: true}
		if blocking, found := blockingBooking(existing, candidate); found {
			slot.Available = false
			slot.BlockedBy = blocking.TicketNumber
		}
		report.Slots = append(report.Slots, slot)
	}
	return report, nil
}

// ReserveSlot books a one-hour visit. Concurrent reservations for the same
// engineer and day are serialized; at most one of two overlapping attempts wins.
func (s *SchedulingService) ReserveSlot(ctx context.Context, input ReserveSlotInput) (*domain.VisitBooking, error) {
	start := input.StartTime.In(s.location)
	if input.StartTime.IsZero() {
		return nil, apperrors.NewValidationError("start_time required", nil)
	}
	end := start.Add(domain.VisitDuration)
	if !input.EndTime.IsZero() && !input.EndTime.Equal(end) {
		return nil, apperrors.NewValidationError("visits last exactly one hour", map[string]any{
			"start_time": start,
			"end_time":   input.EndTime,
		})
	}
	date := start.Format(domain.DateLayout)
	if input.Date != "" && input.Date != date {
		return nil, apperrors.NewValidationError("date does not match start_time", map[string]any{
			"date":       input.Date,
			"start_time": start,
		})
	}
	if strings.TrimSpace(input.EngineerID) == "" {
		return nil, apperrors.NewValidationError("engineer_id required", nil)
	}

	release, err := s.locker.Lock(ctx, slotLockKey(input.EngineerID, date))
	if err != nil {
		return nil, apperrors.MapError(fmt.Errorf("acquire slot lock: %w", err))
	}
	defer release()

	var booking *domain.VisitBooking
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		engineer, err := s.engineers.GetByID(ctx, input.EngineerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperrors.NewUnknownEngineer(input.EngineerID)
			}
			return err
		}
		if err := s.checkCalendar(engineer, date, start, end); err != nil {
			return err
		}
		if err := s.bookings.LockDay(ctx, input.EngineerID, date); err != nil {
			return err
		}
		existing, err := s.bookings.ListByEngineerDate(ctx, input.EngineerID, date)
		if err != nil {
			return err
		}
		if blocking, found := blockingBooking(existing, start); found {
			return apperrors.NewSlotConflict("slot violates the gap to an existing visit", map[string]any{
				"reason":      SlotReasonGap,
				"engineer_id": input.EngineerID,
				"start_time":  start,
				"blocked_by":  blocking.TicketNumber,
			})
		}

		booking = &domain.VisitBooking{
			EngineerID:   input.EngineerID,
			Date:         date,
			StartTime:    start,
			EndTime:      end,
			TicketID:     input.TicketID,
			TicketNumber: input.TicketNumber,
			CompanyName:  input.CompanyName,
			CreatedAt:    s.now().UTC(),
		}
		return s.bookings.Create(ctx, booking)
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeSlotConflict) {
			s.metrics.RecordSlotConflict(input.EngineerID)
			s.logger.Info("slot conflict",
				zap.String("engineer_id", input.EngineerID),
				zap.Time("start_time", start),
				zap.String("ticket_number", input.TicketNumber))
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("visit reserved",
		zap.String("engineer_id", booking.EngineerID),
		zap.String("booking_id", booking.ID),
		zap.Time("start_time", booking.StartTime),
		zap.String("ticket_number", booking.TicketNumber))
	return booking, nil
}

// ReleaseSlot removes every booking held by ticketID and returns them.
func (s *SchedulingService) ReleaseSlot(ctx context.Context, ticketID string) ([]domain.VisitBooking, error) {
	var released []domain.VisitBooking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		released, err = s.bookings.DeleteByTicket(ctx, ticketID)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return released, nil
}

func (s *SchedulingService) checkCalendar(engineer *domain.Engineer, date string, start, end time.Time) error {
	details := map[string]any{"engineer_id": engineer.ID, "date": date}
	if engineer.IsHoliday(date) {
		details["reason"] = SlotReasonHoliday
		return apperrors.NewSlotConflict("engineer is on holiday", details)
	}
	hours, ok := engineer.HoursOn(start.Weekday())
	if !ok {
		details["reason"] = SlotReasonNonWorkingDay
		return apperrors.NewSlotConflict("engineer does not work on this day", details)
	}
	if start.Before(hours.Start.On(start, s.location)) || end.After(hours.End.On(start, s.location)) {
		details["reason"] = SlotReasonOutsideWorkingHours
		details["work_start"] = hours.Start.String()
		details["work_end"] = hours.End.String()
		return apperrors.NewSlotConflict("visit falls outside working hours", details)
	}
	return nil
}

// blockingBooking finds a booking that blocks candidate: a booking at 10:00
// blocks starts from 09:00 up to but excluding 11:00.
func blockingBooking(bookings []domain.VisitBooking, candidate time.Time) (domain.VisitBooking, bool) {
	for _, b := range bookings {
		if !candidate.Before(b.StartTime.Add(-domain.VisitGap)) && candidate.Before(b.StartTime.Add(domain.VisitGap)) {
			return b, true
		}
	}
	return domain.VisitBooking{}, false
}

func slotLockKey(engineerID, date string) string {
	return "slots:" + engineerID + ":" + date
}
