package deadletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
)

// Service manages the dead-letter store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new dead-letter service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Push records a failed run as a PENDING entry.
func (svc *Service) Push(ctx context.Context, f Failure) (*Entry, error) {
	e := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDeadLetterID(),
		RouteID:        f.RouteID,
		RunID:          f.RunID,
		SourcePayload:  f.SourcePayload,
		MappedPayload:  f.MappedPayload,
		Error:          f.Error,
		Attempts:       f.Attempts,
		LastStatusCode: f.LastStatusCode,
		Status:         StatusPending,
	}

	if err := svc.store.PushDeadLetter(ctx, e); err != nil {
		return nil, err
	}

	svc.logger.WarnContext(ctx, "run dead-lettered",
		"dead_letter_id", e.ID.String(),
		"route_id", f.RouteID.String(),
		"run_id", f.RunID.String(),
		"error", f.Error,
	)
	return e, nil
}

// Get returns an entry by ID.
func (svc *Service) Get(ctx context.Context, entryID id.ID) (*Entry, error) {
	return svc.store.GetDeadLetter(ctx, entryID)
}

// List returns entries matching opts, newest first.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDeadLetters(ctx, opts)
}

// Count returns the number of entries in status s, or all entries when s
// is empty.
func (svc *Service) Count(ctx context.Context, s Status) (int64, error) {
	return svc.store.CountDeadLetters(ctx, s)
}

// MarkReplayed records a successful replay.
func (svc *Service) MarkReplayed(ctx context.Context, e *Entry) error {
	return svc.recordReplay(ctx, e, StatusReplayed)
}

// RecordFailedReplay records a replay attempt that failed. The entry stays
// PENDING.
func (svc *Service) RecordFailedReplay(ctx context.Context, e *Entry) error {
	return svc.recordReplay(ctx, e, StatusPending)
}

func (svc *Service) recordReplay(ctx context.Context, e *Entry, s Status) error {
	now := time.Now().UTC()
	e.ReplayCount++
	e.LastReplayedAt = &now
	e.Status = s
	e.Touch()
	return svc.store.UpdateDeadLetter(ctx, e)
}

// Purge removes REPLAYED entries created before the given time.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := svc.store.PurgeDeadLetters(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		svc.logger.InfoContext(ctx, "dead letters purged", "count", n, "before", before)
	}
	return n, nil
}
