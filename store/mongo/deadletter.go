package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
)

// PushDeadLetter records a failed run.
func (s *Store) PushDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("conduit/mongo: push dead letter: %w", err)
	}

	return nil
}

// GetDeadLetter returns a dead letter by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.ID) (*deadletter.Entry, error) {
	var m deadLetterModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, conduit.ErrDeadLetterNotFound
		}

		return nil, fmt.Errorf("conduit/mongo: get dead letter: %w", err)
	}

	return fromDeadLetterModel(&m)
}

// UpdateDeadLetter replaces a dead letter document.
func (s *Store) UpdateDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conduit/mongo: update dead letter: %w", err)
	}

	if res.MatchedCount() == 0 {
		return conduit.ErrDeadLetterNotFound
	}

	return nil
}

// ListDeadLetters returns dead letters, newest first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	var models []deadLetterModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	if opts.RouteID != nil {
		filter["route_id"] = opts.RouteID.String()
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lt"] = *opts.To
		}

		filter["created_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conduit/mongo: list dead letters: %w", err)
	}

	result := make([]*deadletter.Entry, 0, len(models))

	for i := range models {
		e, err := fromDeadLetterModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, e)
	}

	return result, nil
}

// CountDeadLetters counts dead letters, optionally by status.
func (s *Store) CountDeadLetters(ctx context.Context, status deadletter.Status) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	count, err := s.mdb.NewFind((*deadLetterModel)(nil)).
		Filter(filter).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("conduit/mongo: count dead letters: %w", err)
	}

	return count, nil
}

// PurgeDeadLetters deletes replayed entries created before the cutoff.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*deadLetterModel)(nil)).
		Many().
		Filter(bson.M{
			"status":     string(deadletter.StatusReplayed),
			"created_at": bson.M{"$lt": before},
		}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("conduit/mongo: purge dead letters: %w", err)
	}

	return res.DeletedCount(), nil
}
