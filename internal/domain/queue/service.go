package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seva/seva/internal/domain/appointment"
	"github.com/seva/seva/internal/domain/provider"
	"github.com/seva/seva/internal/platform/events"
)

// AppointmentStore is the slice of the appointment domain the queue consumes.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status appointment.Status, checkedInAt *time.Time) error
}

// ProviderStore resolves providers for admission and for notifying every
// active provider about unassigned emergencies.
type ProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
	ListActive(ctx context.Context) ([]*provider.Provider, error)
}

// TxRunner executes fn atomically. The production wiring is db.InTx over the
// pgx pool; tests substitute a pass-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// LockFunc serializes admissions per provider queue within a transaction. The
// production wiring is db.AcquireAdvisoryLock.
type LockFunc func(ctx context.Context, key string) error

// lockKeyUnassigned serializes admissions that target no provider queue.
const lockKeyUnassigned = "queue:unassigned"

func lockKeyProvider(providerID uuid.UUID) string {
	return "queue:" + providerID.String()
}

// Config carries the queue tuning knobs.
type Config struct {
	Window TimeWindow
	// VisitMinutes is the fixed per-visit duration used for wait estimates.
	VisitMinutes int
	// EmergencyMinutes is the wait added to every displaced entry when an
	// emergency preempts the queue.
	EmergencyMinutes int
}

// DefaultConfig mirrors the system-wide defaults: 5-minute visits, 15-minute
// emergency consultations, 20/15 minute check-in window.
func DefaultConfig() Config {
	return Config{Window: DefaultTimeWindow(), VisitMinutes: 5, EmergencyMinutes: 15}
}

// Service is the queue admission state machine. Every admission runs
// Requested -> Validated -> Checked-for-duplicate -> Positioned -> Persisted
// -> Notified, with rejection exits at each step. Position assignment and the
// duplicate re-check happen inside a provider-locked transaction so the
// contiguity invariant holds under concurrent admissions.
type Service struct {
	repo         Repository
	appointments AppointmentStore
	providers    ProviderStore
	notifier     events.Notifier
	runTx        TxRunner
	lock         LockFunc
	cfg          Config
	logger       zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, appointments AppointmentStore, providers ProviderStore,
	notifier events.Notifier, runTx TxRunner, lock LockFunc, cfg Config, logger zerolog.Logger) *Service {
	if cfg.VisitMinutes <= 0 {
		cfg.VisitMinutes = 5
	}
	if cfg.EmergencyMinutes <= 0 {
		cfg.EmergencyMinutes = 15
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		providers:    providers,
		notifier:     notifier,
		runTx:        runTx,
		lock:         lock,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// Admit decides whether the request enters today's live queue. On success the
// backing appointment (if any) is transitioned to CheckedIn in the same
// transaction that creates the entry. Every failure is a *RejectionError or a
// store error; nothing is silently dropped.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	if !ValidMode(req.Mode) {
		return nil, rejectInvalidState(fmt.Sprintf("unknown admission mode %q", req.Mode))
	}
	if req.Mode == ModeEmergency {
		return s.admitEmergency(ctx, req)
	}
	return s.admitScheduled(ctx, req)
}

// admitScheduled handles the self and assisted paths, which share everything
// except the actor annotation on the entry.
func (s *Service) admitScheduled(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	if req.AppointmentID == nil {
		return nil, rejectInvalidState("an appointment is required for non-emergency check-in")
	}

	appt, err := s.appointments.GetByID(ctx, *req.AppointmentID)
	if err != nil {
		return nil, rejectNotFound("appointment")
	}
	if !appt.Admissible() {
		return nil, rejectInvalidState(fmt.Sprintf("appointment status is %s, expected booked or confirmed", appt.Status))
	}

	providerID := appt.ProviderID
	if req.ProviderID != nil {
		providerID = *req.ProviderID
	}
	prov, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, rejectNotFound("provider")
	}
	if !prov.Active {
		return nil, rejectInvalidState("provider is not accepting visitors")
	}

	now := s.now()
	if check := s.cfg.Window.Check(appt.ScheduledStart, now); !check.Admissible {
		return nil, rejectWindow(check)
	}

	day := ServiceDay(now)
	entry := &Entry{
		AppointmentID: req.AppointmentID,
		VisitorID:     appt.VisitorID,
		ProviderID:    &providerID,
		ServiceDay:    day,
		Status:        StatusWaiting,
		Priority:      appt.Priority,
		Mode:          req.Mode,
		CheckedInAt:   now,
		AssistedBy:    req.AssistedBy,
		Location:      req.Location,
		Note:          req.Note,
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, lockKeyProvider(providerID)); err != nil {
			return err
		}

		// Re-check under the lock: two concurrent admissions for the same
		// visitor must not both succeed.
		existing, err := s.repo.FindActiveForVisitor(ctx, appt.VisitorID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return rejectDuplicate(existing)
		}

		count, err := s.repo.CountActiveForProvider(ctx, providerID, day)
		if err != nil {
			return err
		}
		entry.Position = count
		entry.EstimatedWaitMin = count * s.cfg.VisitMinutes

		if err := s.repo.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.appointments.UpdateStatus(ctx, appt.ID, appointment.StatusCheckedIn, &now)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:       events.EntryAdded,
		EntryID:    entry.ID,
		ProviderID: &providerID,
		Timestamp:  now,
		Payload:    positionPayload(entry),
	})

	return &AdmitResult{Entry: entry, Position: entry.Position, EstimatedWaitMinutes: entry.EstimatedWaitMin}, nil
}

// admitEmergency bypasses the time window and invokes preemption: the entry
// goes to the front of the provider's queue and every displaced entry shifts
// back one slot, all in one transaction. Back-to-back emergencies keep arrival
// order, so a second emergency lands behind the first, not in front of it. An
// emergency with no provider is created in the unassigned scope with
// placeholder position/wait and broadcast to every active provider for a
// coordinator to pick up.
func (s *Service) admitEmergency(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	now := s.now()
	day := ServiceDay(now)

	var appt *appointment.Appointment
	visitorID := req.VisitorID
	if req.AppointmentID != nil {
		var err error
		appt, err = s.appointments.GetByID(ctx, *req.AppointmentID)
		if err != nil {
			return nil, rejectNotFound("appointment")
		}
		// Emergencies bypass the time window, not the appointment state
		// machine: a terminal appointment must not move back to checked-in.
		if !appt.Admissible() {
			return nil, rejectInvalidState(fmt.Sprintf("appointment status is %s, expected booked or confirmed", appt.Status))
		}
		visitorID = appt.VisitorID
	}
	if visitorID == uuid.Nil {
		return nil, rejectInvalidState("visitor_id is required for emergency admission")
	}

	var providerID *uuid.UUID
	switch {
	case req.ProviderID != nil:
		prov, err := s.providers.GetByID(ctx, *req.ProviderID)
		if err != nil {
			return nil, rejectNotFound("provider")
		}
		if !prov.Active {
			return nil, rejectInvalidState("provider is not accepting visitors")
		}
		providerID = &prov.ID
	case appt != nil:
		// No provider named in the request: place the emergency on the
		// appointment's provider. If that provider is gone or not accepting,
		// the emergency stays unassigned and is broadcast instead of refused.
		if prov, err := s.providers.GetByID(ctx, appt.ProviderID); err == nil && prov.Active {
			providerID = &prov.ID
		}
	}

	entry := &Entry{
		AppointmentID: req.AppointmentID,
		VisitorID:     visitorID,
		ProviderID:    providerID,
		ServiceDay:    day,
		Position:      0,
		Status:        StatusWaiting,
		Priority:      appointment.PriorityUrgent,
		Mode:          ModeEmergency,
		CheckedInAt:   now,
		AssistedBy:    req.AssistedBy,
		Location:      req.Location,
		Note:          req.Note,
	}

	var shifted []*Entry
	err := s.runTx(ctx, func(ctx context.Context) error {
		key := lockKeyUnassigned
		if providerID != nil {
			key = lockKeyProvider(*providerID)
		}
		if err := s.lock(ctx, key); err != nil {
			return err
		}

		existing, err := s.repo.FindActiveForVisitor(ctx, visitorID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return rejectDuplicate(existing)
		}

		if providerID != nil {
			active, err := s.repo.ListActiveForProvider(ctx, *providerID, day)
			if err != nil {
				return err
			}
			// An emergency lands behind emergencies already at the front, never
			// in front of them. Only the entries it displaces shift back.
			insertAt := countEmergencies(active)
			entry.Position = insertAt
			entry.EstimatedWaitMin = insertAt * s.cfg.EmergencyMinutes
		}

		if err := s.repo.CreateEntry(ctx, entry); err != nil {
			return err
		}
		if appt != nil {
			if err := s.appointments.UpdateStatus(ctx, appt.ID, appointment.StatusCheckedIn, &now); err != nil {
				return err
			}
		}
		if providerID == nil {
			return nil
		}

		if err := s.repo.ShiftProviderQueue(ctx, *providerID, day, entry.ID, entry.Position, 1, s.cfg.EmergencyMinutes); err != nil {
			return fmt.Errorf("preemption shift: %w", err)
		}
		shifted, err = s.repo.ListActiveForProvider(ctx, *providerID, day)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:       events.EmergencyAdmitted,
		EntryID:    entry.ID,
		ProviderID: providerID,
		Timestamp:  now,
		Payload:    positionPayload(entry),
	})

	if providerID == nil {
		s.notifyActiveProviders(ctx, entry, now)
	} else {
		for _, e := range shifted {
			if e.ID == entry.ID {
				continue
			}
			s.emit(ctx, events.Event{
				Type:       events.EntryShifted,
				EntryID:    e.ID,
				ProviderID: providerID,
				Timestamp:  now,
				Payload:    positionPayload(e),
			})
		}
	}

	return &AdmitResult{Entry: entry, Position: entry.Position, EstimatedWaitMinutes: entry.EstimatedWaitMin}, nil
}

// notifyActiveProviders fans an unassigned emergency out to every active
// provider so any coordinator station can claim it.
func (s *Service) notifyActiveProviders(ctx context.Context, entry *Entry, now time.Time) {
	provs, err := s.providers.ListActive(ctx)
	if err != nil || len(provs) == 0 {
		if err != nil {
			s.logger.Warn().Err(err).Msg("listing active providers for emergency broadcast")
		}
		// Fall back to a scope-less broadcast.
		s.emit(ctx, events.Event{
			Type:      events.EmergencyAdmitted,
			EntryID:   entry.ID,
			Timestamp: now,
			Payload:   positionPayload(entry),
		})
		return
	}
	for _, p := range provs {
		pid := p.ID
		s.emit(ctx, events.Event{
			Type:       events.EmergencyAdmitted,
			EntryID:    entry.ID,
			ProviderID: &pid,
			Timestamp:  now,
			Payload:    positionPayload(entry),
		})
	}
}

// AssignEmergency places an unassigned emergency onto a provider's queue,
// re-running preemption against that queue.
func (s *Service) AssignEmergency(ctx context.Context, entryID, providerID uuid.UUID) (*Entry, error) {
	prov, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, rejectNotFound("provider")
	}
	if !prov.Active {
		return nil, rejectInvalidState("provider is not accepting visitors")
	}

	now := s.now()
	var entry *Entry
	var shifted []*Entry
	err = s.runTx(ctx, func(ctx context.Context) error {
		// Lock order is always unassigned scope first, then a provider key.
		// The unassigned lock excludes a concurrent cancel of the entry, the
		// provider lock excludes admissions on the target queue.
		if err := s.lock(ctx, lockKeyUnassigned); err != nil {
			return err
		}
		if err := s.lock(ctx, lockKeyProvider(providerID)); err != nil {
			return err
		}

		entry, err = s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return rejectNotFound("queue entry")
		}
		if entry.ProviderID != nil {
			return rejectInvalidState("entry is already assigned to a provider")
		}
		if entry.Status != StatusWaiting {
			return rejectInvalidState(fmt.Sprintf("entry status is %s, expected waiting", entry.Status))
		}

		active, err := s.repo.ListActiveForProvider(ctx, providerID, entry.ServiceDay)
		if err != nil {
			return err
		}
		insertAt := countEmergencies(active)
		if err := s.repo.ShiftProviderQueue(ctx, providerID, entry.ServiceDay, entry.ID, insertAt, 1, s.cfg.EmergencyMinutes); err != nil {
			return fmt.Errorf("preemption shift: %w", err)
		}
		waitMin := insertAt * s.cfg.EmergencyMinutes
		if err := s.repo.AssignProvider(ctx, entry.ID, providerID, insertAt, waitMin); err != nil {
			return err
		}
		entry.ProviderID = &providerID
		entry.Position = insertAt
		entry.EstimatedWaitMin = waitMin

		shifted, err = s.repo.ListActiveForProvider(ctx, providerID, entry.ServiceDay)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:       events.EmergencyAdmitted,
		EntryID:    entry.ID,
		ProviderID: &providerID,
		Timestamp:  now,
		Payload:    positionPayload(entry),
	})
	for _, e := range shifted {
		if e.ID == entry.ID {
			continue
		}
		s.emit(ctx, events.Event{
			Type:       events.EntryShifted,
			EntryID:    e.ID,
			ProviderID: &providerID,
			Timestamp:  now,
			Payload:    positionPayload(e),
		})
	}
	return entry, nil
}

// Snapshot returns the provider's live queue ordered by position.
func (s *Service) Snapshot(ctx context.Context, providerID uuid.UUID) ([]*Entry, error) {
	if _, err := s.providers.GetByID(ctx, providerID); err != nil {
		return nil, rejectNotFound("provider")
	}
	return s.repo.ListActiveForProvider(ctx, providerID, ServiceDay(s.now()))
}

// StartNext moves the provider's position-0 entry to InProgress.
func (s *Service) StartNext(ctx context.Context, providerID uuid.UUID) (*Entry, error) {
	now := s.now()
	day := ServiceDay(now)

	var next *Entry
	err := s.runTx(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, lockKeyProvider(providerID)); err != nil {
			return err
		}
		active, err := s.repo.ListActiveForProvider(ctx, providerID, day)
		if err != nil {
			return err
		}
		for _, e := range active {
			if e.Status == StatusWaiting {
				next = e
				break
			}
		}
		if next == nil {
			return rejectNotFound("waiting queue entry")
		}
		if err := s.repo.UpdateEntryStatus(ctx, next.ID, StatusInProgress); err != nil {
			return err
		}
		next.Status = StatusInProgress
		if next.AppointmentID != nil {
			return s.appointments.UpdateStatus(ctx, *next.AppointmentID, appointment.StatusInProgress, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:       events.EntryStarted,
		EntryID:    next.ID,
		ProviderID: &providerID,
		Timestamp:  now,
		Payload:    positionPayload(next),
	})
	return next, nil
}

// Complete transitions an in-progress entry to Completed and closes the
// position gap it leaves behind.
func (s *Service) Complete(ctx context.Context, entryID uuid.UUID) error {
	return s.depart(ctx, entryID, StatusCompleted, events.EntryCompleted, appointment.StatusCompleted)
}

// Cancel transitions a waiting or in-progress entry to Cancelled and closes
// the position gap. The backing appointment keeps its own status: a cancelled
// queue entry does not imply a cancelled appointment.
func (s *Service) Cancel(ctx context.Context, entryID uuid.UUID) error {
	return s.depart(ctx, entryID, StatusCancelled, events.EntryCancelled, "")
}

func (s *Service) depart(ctx context.Context, entryID uuid.UUID, to Status, eventType string, apptStatus appointment.Status) error {
	now := s.now()

	var entry *Entry
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return rejectNotFound("queue entry")
		}

		key := lockKeyUnassigned
		if entry.ProviderID != nil {
			key = lockKeyProvider(*entry.ProviderID)
		}
		if err := s.lock(ctx, key); err != nil {
			return err
		}

		// Re-read under the lock: a concurrent preemption may have moved the
		// entry between the first read and lock acquisition.
		entry, err = s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return rejectNotFound("queue entry")
		}

		// An unassigned entry may have been assigned to a provider while we
		// waited on the unassigned lock. Its queue must be locked before the
		// gap-close shift; unassigned-then-provider matches the assignment
		// path's lock order.
		if key == lockKeyUnassigned && entry.ProviderID != nil {
			if err := s.lock(ctx, lockKeyProvider(*entry.ProviderID)); err != nil {
				return err
			}
		}

		if !CanTransition(entry.Status, to) {
			return rejectInvalidState(fmt.Sprintf("cannot move entry from %s to %s", entry.Status, to))
		}
		if err := s.repo.UpdateEntryStatus(ctx, entry.ID, to); err != nil {
			return err
		}
		if entry.ProviderID != nil {
			// Close the gap so positions stay contiguous from 0.
			if err := s.repo.ShiftProviderQueue(ctx, *entry.ProviderID, entry.ServiceDay, entry.ID,
				entry.Position+1, -1, -s.cfg.VisitMinutes); err != nil {
				return fmt.Errorf("gap-close shift: %w", err)
			}
		}
		if apptStatus != "" && entry.AppointmentID != nil {
			return s.appointments.UpdateStatus(ctx, *entry.AppointmentID, apptStatus, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Type:       eventType,
		EntryID:    entry.ID,
		ProviderID: entry.ProviderID,
		Timestamp:  now,
	})
	return nil
}

// emit delivers a notification best-effort. Queue state is the source of
// truth; a failed delivery is logged and swallowed.
func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", ev.Type).
			Str("entry_id", ev.EntryID.String()).
			Msg("queue event delivery failed")
	}
}

// countEmergencies counts the emergency entries occupying the front of an
// active queue. Preemption inserts behind them.
func countEmergencies(active []*Entry) int {
	n := 0
	for _, e := range active {
		if e.Mode == ModeEmergency {
			n++
		}
	}
	return n
}

func positionPayload(e *Entry) map[string]interface{} {
	return map[string]interface{}{
		"position":               e.Position,
		"estimated_wait_minutes": e.EstimatedWaitMin,
		"status":                 e.Status,
	}
}
