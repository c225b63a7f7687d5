package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, checkedInAt *time.Time) error
	ListByProviderDay(ctx context.Context, providerID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error)
	ListByVisitor(ctx context.Context, visitorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
