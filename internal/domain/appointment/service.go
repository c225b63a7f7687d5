package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Book creates an appointment in Booked status. Booking validation beyond the
// basics lives in the booking frontends, not here.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.VisitorID == uuid.Nil {
		return fmt.Errorf("visitor_id is required")
	}
	if a.ProviderID == uuid.Nil {
		return fmt.Errorf("provider_id is required")
	}
	if a.ScheduledStart.IsZero() {
		return fmt.Errorf("scheduled_start is required")
	}
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}
	if !ValidPriority(a.Priority) {
		return fmt.Errorf("unknown priority %q", a.Priority)
	}
	a.Status = StatusBooked
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCompleted || a.Status == StatusCancelled {
		return fmt.Errorf("appointment is already %s", a.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !a.Admissible() {
		return fmt.Errorf("appointment is %s, cannot mark no-show", a.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusNoShow, nil)
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != StatusBooked {
		return fmt.Errorf("only booked appointments can be confirmed, got %s", a.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusConfirmed, nil)
}

func (s *Service) ListByProviderDay(ctx context.Context, providerID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByProviderDay(ctx, providerID, day, limit, offset)
}

func (s *Service) ListByVisitor(ctx context.Context, visitorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByVisitor(ctx, visitorID, limit, offset)
}
