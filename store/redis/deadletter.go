package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/store/internal/codec"
)

// deadLetterModel is the JSON representation stored in Redis.
type deadLetterModel struct {
	ID             string          `json:"id"`
	RouteID        string          `json:"route_id"`
	RunID          string          `json:"run_id"`
	SourcePayload  json.RawMessage `json:"source_payload,omitempty"`
	MappedPayload  json.RawMessage `json:"mapped_payload,omitempty"`
	Error          string          `json:"error"`
	Attempts       int             `json:"attempts"`
	LastStatusCode int             `json:"last_status_code"`
	Status         string          `json:"status"`
	ReplayCount    int             `json:"replay_count"`
	LastReplayedAt *time.Time      `json:"last_replayed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDeadLetterModel(e *deadletter.Entry) (*deadLetterModel, error) {
	source, err := codec.EncodeValue(e.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.EncodeValue(e.MappedPayload)
	if err != nil {
		return nil, err
	}
	return &deadLetterModel{
		ID:             e.ID.String(),
		RouteID:        e.RouteID.String(),
		RunID:          e.RunID.String(),
		SourcePayload:  source,
		MappedPayload:  mapped,
		Error:          e.Error,
		Attempts:       e.Attempts,
		LastStatusCode: e.LastStatusCode,
		Status:         string(e.Status),
		ReplayCount:    e.ReplayCount,
		LastReplayedAt: e.LastReplayedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}

func fromDeadLetterModel(m *deadLetterModel) (*deadletter.Entry, error) {
	entryID, err := id.ParseDeadLetterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dead letter ID %q: %w", m.ID, err)
	}
	routeID, err := id.ParseRouteID(m.RouteID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.RouteID, err)
	}
	runID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.RunID, err)
	}
	source, err := codec.DecodeValue(m.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue(m.MappedPayload)
	if err != nil {
		return nil, err
	}
	return &deadletter.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             entryID,
		RouteID:        routeID,
		RunID:          runID,
		SourcePayload:  source,
		MappedPayload:  mapped,
		Error:          m.Error,
		Attempts:       m.Attempts,
		LastStatusCode: m.LastStatusCode,
		Status:         deadletter.Status(m.Status),
		ReplayCount:    m.ReplayCount,
		LastReplayedAt: m.LastReplayedAt,
	}, nil
}

func (s *Store) PushDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}

	if err := s.save(ctx, entityKey(prefixDeadLetter, m.ID), m); err != nil {
		return fmt.Errorf("conduit/redis: push dead letter: %w", err)
	}

	at := score(m.CreatedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDeadLetterAll, goredis.Z{Score: at, Member: m.ID})
	pipe.ZAdd(ctx, zDeadLetterRte+m.RouteID, goredis.Z{Score: at, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conduit/redis: push dead letter indexes: %w", err)
	}
	return nil
}

func (s *Store) GetDeadLetter(ctx context.Context, entryID id.ID) (*deadletter.Entry, error) {
	var m deadLetterModel
	if err := s.load(ctx, entityKey(prefixDeadLetter, entryID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, conduit.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("conduit/redis: get dead letter: %w", err)
	}
	return fromDeadLetterModel(&m)
}

func (s *Store) UpdateDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	key := entityKey(prefixDeadLetter, e.ID.String())

	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}
	return s.saveExisting(ctx, key, m, conduit.ErrDeadLetterNotFound)
}

func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	zKey := zDeadLetterAll
	if opts.RouteID != nil {
		zKey = zDeadLetterRte + opts.RouteID.String()
	}

	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = score(*opts.From)
	}
	if opts.To != nil {
		maxScore = score(*opts.To)
	}

	ids, err := s.membersBetween(ctx, zKey, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("conduit/redis: list dead letters: %w", err)
	}

	result := make([]*deadletter.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m deadLetterModel
		if err := s.load(ctx, entityKey(prefixDeadLetter, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != "" && m.Status != string(opts.Status) {
			continue
		}
		// The score range is inclusive; the upper bound is not.
		if opts.To != nil && !m.CreatedAt.Before(*opts.To) {
			continue
		}
		entry, err := fromDeadLetterModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountDeadLetters(ctx context.Context, status deadletter.Status) (int64, error) {
	if status == "" {
		count, err := s.rdb.ZCard(ctx, zDeadLetterAll).Result()
		if err != nil {
			return 0, fmt.Errorf("conduit/redis: count dead letters: %w", err)
		}
		return count, nil
	}

	entries, err := s.ListDeadLetters(ctx, deadletter.ListOpts{Status: status})
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.membersBetween(ctx, zDeadLetterAll, math.Inf(-1), score(before))
	if err != nil {
		return 0, fmt.Errorf("conduit/redis: purge list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m deadLetterModel
		if err := s.load(ctx, entityKey(prefixDeadLetter, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}
		if m.Status != string(deadletter.StatusReplayed) || !m.CreatedAt.Before(before) {
			continue
		}

		if err := s.deleteDeadLetter(ctx, entryID, m.RouteID); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// deleteDeadLetter removes a dead letter and its index entries.
func (s *Store) deleteDeadLetter(ctx context.Context, entryID, routeID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixDeadLetter, entryID))
	pipe.ZRem(ctx, zDeadLetterAll, entryID)
	pipe.ZRem(ctx, zDeadLetterRte+routeID, entryID)
	_, err := pipe.Exec(ctx)
	return err
}
