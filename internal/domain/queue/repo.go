package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the queue store. Implementations must make each method
// observe the context-scoped transaction when one is present, so the service
// can compose duplicate-check, position assignment and entry creation into a
// single atomic unit.
type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)

	// CountActiveForProvider counts Waiting/InProgress entries for one
	// provider's queue on the given service day.
	CountActiveForProvider(ctx context.Context, providerID uuid.UUID, day time.Time) (int, error)

	// FindActiveForVisitor returns the visitor's active entry for the day,
	// or (nil, nil) when there is none.
	FindActiveForVisitor(ctx context.Context, visitorID uuid.UUID, day time.Time) (*Entry, error)

	// ShiftProviderQueue applies positionDelta and waitDelta to every active
	// entry of the provider's queue at or beyond minPosition, excluding one
	// entry, as a single bulk update. Waits are clamped at zero.
	ShiftProviderQueue(ctx context.Context, providerID uuid.UUID, day time.Time, excluding uuid.UUID, minPosition, positionDelta, waitDelta int) error

	// ListActiveForProvider returns the provider's live queue ordered by
	// position ascending.
	ListActiveForProvider(ctx context.Context, providerID uuid.UUID, day time.Time) ([]*Entry, error)

	UpdateEntryStatus(ctx context.Context, id uuid.UUID, status Status) error

	// AssignProvider moves an unassigned entry onto a provider's queue at the
	// given position and wait.
	AssignProvider(ctx context.Context, id, providerID uuid.UUID, position, waitMin int) error
}
