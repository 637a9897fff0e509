package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/store/internal/codec"
)

// routeModel is the JSON representation stored in Redis.
type routeModel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Enabled     bool            `json:"enabled"`
	Spec        json.RawMessage `json:"spec"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toRouteModel(r *route.Route) (*routeModel, error) {
	spec, err := codec.EncodeRouteSpec(r)
	if err != nil {
		return nil, err
	}
	return &routeModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		Spec:        spec,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func fromRouteModel(m *routeModel) (*route.Route, error) {
	routeID, err := id.ParseRouteID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.ID, err)
	}
	r := &route.Route{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          routeID,
		Name:        m.Name,
		Description: m.Description,
		Enabled:     m.Enabled,
	}
	if err := codec.DecodeRouteSpec(m.Spec, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) CreateRoute(ctx context.Context, r *route.Route) error {
	m, err := toRouteModel(r)
	if err != nil {
		return err
	}

	if err := s.save(ctx, entityKey(prefixRoute, m.ID), m); err != nil {
		return fmt.Errorf("conduit/redis: create route: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zRouteAll, goredis.Z{Score: score(m.CreatedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("conduit/redis: create route index: %w", err)
	}
	return nil
}

func (s *Store) GetRoute(ctx context.Context, routeID id.ID) (*route.Route, error) {
	var m routeModel
	if err := s.load(ctx, entityKey(prefixRoute, routeID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, conduit.ErrRouteNotFound
		}
		return nil, fmt.Errorf("conduit/redis: get route: %w", err)
	}
	return fromRouteModel(&m)
}

func (s *Store) UpdateRoute(ctx context.Context, r *route.Route) error {
	key := entityKey(prefixRoute, r.ID.String())

	m, err := toRouteModel(r)
	if err != nil {
		return err
	}
	return s.saveExisting(ctx, key, m, conduit.ErrRouteNotFound)
}

func (s *Store) DeleteRoute(ctx context.Context, routeID id.ID) error {
	n, err := s.rdb.Del(ctx, entityKey(prefixRoute, routeID.String())).Result()
	if err != nil {
		return fmt.Errorf("conduit/redis: delete route: %w", err)
	}
	if n == 0 {
		return conduit.ErrRouteNotFound
	}

	if err := s.rdb.ZRem(ctx, zRouteAll, routeID.String()).Err(); err != nil {
		return fmt.Errorf("conduit/redis: delete route index: %w", err)
	}
	return nil
}

func (s *Store) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	// Members with equal scores come back in ID order.
	ids, err := s.rdb.ZRange(ctx, zRouteAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conduit/redis: list routes: %w", err)
	}

	result := make([]*route.Route, 0, len(ids))
	for _, routeID := range ids {
		var m routeModel
		if err := s.load(ctx, entityKey(prefixRoute, routeID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		r, err := fromRouteModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return page(result, opts.Offset, opts.Limit), nil
}
