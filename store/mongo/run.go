package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
)

// CreateRun persists a run. The partial unique index on
// (route_id, idempotency_key) rejects a second run with the same key.
func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return conduit.ErrDuplicateIdempotencyKey
		}

		return fmt.Errorf("conduit/mongo: create run: %w", err)
	}

	return nil
}

// UpdateRun replaces a run document.
func (s *Store) UpdateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conduit/mongo: update run: %w", err)
	}

	if res.MatchedCount() == 0 {
		return conduit.ErrRunNotFound
	}

	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	var m runModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": runID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, conduit.ErrRunNotFound
		}

		return nil, fmt.Errorf("conduit/mongo: get run: %w", err)
	}

	return fromRunModel(&m)
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var models []runModel

	filter := bson.M{}
	if opts.RouteID != nil {
		filter["route_id"] = opts.RouteID.String()
	}

	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conduit/mongo: list runs: %w", err)
	}

	result := make([]*run.Run, 0, len(models))

	for i := range models {
		r, err := fromRunModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}

// CountRuns counts runs, optionally by status.
func (s *Store) CountRuns(ctx context.Context, status run.Status) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	count, err := s.mdb.NewFind((*runModel)(nil)).
		Filter(filter).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("conduit/mongo: count runs: %w", err)
	}

	return count, nil
}

// GetRunByIdempotencyKey returns the run recorded for a route under key.
func (s *Store) GetRunByIdempotencyKey(ctx context.Context, routeID id.ID, key string) (*run.Run, error) {
	var m runModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"route_id": routeID.String(), "idempotency_key": key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, conduit.ErrRunNotFound
		}

		return nil, fmt.Errorf("conduit/mongo: get run by idempotency key: %w", err)
	}

	return fromRunModel(&m)
}
