package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/run"
	"github.com/xraph/conduit/store/internal/codec"
)

// runModel is the JSON representation stored in Redis.
type runModel struct {
	ID             string          `json:"id"`
	RouteID        string          `json:"route_id"`
	Status         string          `json:"status"`
	SourcePayload  json.RawMessage `json:"source_payload,omitempty"`
	MappedPayload  json.RawMessage `json:"mapped_payload,omitempty"`
	ResponseStatus int             `json:"response_status"`
	ResponseBody   json.RawMessage `json:"response_body,omitempty"`
	Attempts       int             `json:"attempts"`
	Error          string          `json:"error,omitempty"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
}

func toRunModel(r *run.Run) (*runModel, error) {
	source, err := codec.EncodeValue(r.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.EncodeValue(r.MappedPayload)
	if err != nil {
		return nil, err
	}
	body, err := codec.EncodeValue(r.ResponseBody)
	if err != nil {
		return nil, err
	}
	return &runModel{
		ID:             r.ID.String(),
		RouteID:        r.RouteID.String(),
		Status:         string(r.Status),
		SourcePayload:  source,
		MappedPayload:  mapped,
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   body,
		Attempts:       r.Attempts,
		Error:          r.Error,
		CorrelationID:  r.CorrelationID,
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.DurationMs,
	}, nil
}

func fromRunModel(m *runModel) (*run.Run, error) {
	runID, err := id.ParseRunID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.ID, err)
	}
	routeID, err := id.ParseRouteID(m.RouteID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.RouteID, err)
	}
	source, err := codec.DecodeValue(m.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue(m.MappedPayload)
	if err != nil {
		return nil, err
	}
	body, err := codec.DecodeValue(m.ResponseBody)
	if err != nil {
		return nil, err
	}
	return &run.Run{
		ID:             runID,
		RouteID:        routeID,
		Status:         run.Status(m.Status),
		SourcePayload:  source,
		MappedPayload:  mapped,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   body,
		Attempts:       m.Attempts,
		Error:          m.Error,
		CorrelationID:  m.CorrelationID,
		IdempotencyKey: m.IdempotencyKey,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
		DurationMs:     m.DurationMs,
	}, nil
}

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}

	// Idempotency check via SET NX.
	idemKey := ""
	if m.IdempotencyKey != "" {
		idemKey = idempotencyKey(m.RouteID, m.IdempotencyKey)
		ok, err := s.rdb.SetNX(ctx, idemKey, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("conduit/redis: create run idem check: %w", err)
		}
		if !ok {
			return conduit.ErrDuplicateIdempotencyKey
		}
	}

	if err := s.save(ctx, entityKey(prefixRun, m.ID), m); err != nil {
		s.releaseIdempotencyKey(ctx, idemKey)
		return fmt.Errorf("conduit/redis: create run: %w", err)
	}

	at := score(m.StartedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zRunAll, goredis.Z{Score: at, Member: m.ID})
	pipe.ZAdd(ctx, zRunRoute+m.RouteID, goredis.Z{Score: at, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		_ = s.rdb.Del(context.WithoutCancel(ctx), entityKey(prefixRun, m.ID)).Err()
		s.releaseIdempotencyKey(ctx, idemKey)
		return fmt.Errorf("conduit/redis: create run indexes: %w", err)
	}
	return nil
}

// releaseIdempotencyKey frees a key claimed by a run that was not stored,
// so a retry with the same key can create it.
func (s *Store) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	_ = s.rdb.Del(context.WithoutCancel(ctx), key).Err()
}

func (s *Store) UpdateRun(ctx context.Context, r *run.Run) error {
	key := entityKey(prefixRun, r.ID.String())

	m, err := toRunModel(r)
	if err != nil {
		return err
	}
	return s.saveExisting(ctx, key, m, conduit.ErrRunNotFound)
}

func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	var m runModel
	if err := s.load(ctx, entityKey(prefixRun, runID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, conduit.ErrRunNotFound
		}
		return nil, fmt.Errorf("conduit/redis: get run: %w", err)
	}
	return fromRunModel(&m)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	zKey := zRunAll
	if opts.RouteID != nil {
		zKey = zRunRoute + opts.RouteID.String()
	}

	ids, err := s.membersDesc(ctx, zKey)
	if err != nil {
		return nil, fmt.Errorf("conduit/redis: list runs: %w", err)
	}

	result := make([]*run.Run, 0, len(ids))
	for _, runID := range ids {
		var m runModel
		if err := s.load(ctx, entityKey(prefixRun, runID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != "" && m.Status != string(opts.Status) {
			continue
		}
		r, err := fromRunModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountRuns(ctx context.Context, status run.Status) (int64, error) {
	if status == "" {
		count, err := s.rdb.ZCard(ctx, zRunAll).Result()
		if err != nil {
			return 0, fmt.Errorf("conduit/redis: count runs: %w", err)
		}
		return count, nil
	}

	runs, err := s.ListRuns(ctx, run.ListOpts{Status: status})
	if err != nil {
		return 0, err
	}
	return int64(len(runs)), nil
}

func (s *Store) GetRunByIdempotencyKey(ctx context.Context, routeID id.ID, key string) (*run.Run, error) {
	runIDStr, err := s.rdb.Get(ctx, idempotencyKey(routeID.String(), key)).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, conduit.ErrRunNotFound
		}
		return nil, fmt.Errorf("conduit/redis: get run by idempotency key: %w", err)
	}

	runID, err := id.ParseRunID(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", runIDStr, err)
	}
	return s.GetRun(ctx, runID)
}
