package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
	"github.com/xraph/conduit/store/internal/codec"
)

// Payloads and route specs are stored as JSON strings so documents keep the
// exact shape the mapping engine saw, including numbers wider than int32.

// --- Route models ---

type routeModel struct {
	grove.BaseModel `grove:"table:conduit_routes"`

	ID          string    `grove:"id,pk"         bson:"_id"`
	Name        string    `grove:"name"          bson:"name"`
	Description string    `grove:"description"   bson:"description"`
	Enabled     bool      `grove:"enabled"       bson:"enabled"`
	SourceEvent string    `grove:"source_event"  bson:"source_event"`
	Spec        string    `grove:"spec"          bson:"spec"`
	CreatedAt   time.Time `grove:"created_at"    bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"    bson:"updated_at"`
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
		SourceEvent: r.Source.Event,
		Spec:        string(spec),
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
	if err := codec.DecodeRouteSpec([]byte(m.Spec), r); err != nil {
		return nil, err
	}
	return r, nil
}

// --- Run models ---

type runModel struct {
	grove.BaseModel `grove:"table:conduit_runs"`

	ID             string     `grove:"id,pk"            bson:"_id"`
	RouteID        string     `grove:"route_id"         bson:"route_id"`
	Status         string     `grove:"status"           bson:"status"`
	SourcePayload  string     `grove:"source_payload"   bson:"source_payload,omitempty"`
	MappedPayload  string     `grove:"mapped_payload"   bson:"mapped_payload,omitempty"`
	ResponseStatus int        `grove:"response_status"  bson:"response_status"`
	ResponseBody   string     `grove:"response_body"    bson:"response_body,omitempty"`
	Attempts       int        `grove:"attempts"         bson:"attempts"`
	Error          string     `grove:"error"            bson:"error"`
	CorrelationID  string     `grove:"correlation_id"   bson:"correlation_id"`
	IdempotencyKey string     `grove:"idempotency_key"  bson:"idempotency_key,omitempty"`
	StartedAt      time.Time  `grove:"started_at"       bson:"started_at"`
	FinishedAt     *time.Time `grove:"finished_at"      bson:"finished_at,omitempty"`
	DurationMs     int64      `grove:"duration_ms"      bson:"duration_ms"`
}

func toRunModel(r *run.Run) (*runModel, error) {
	source, err := encodeString(r.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := encodeString(r.MappedPayload)
	if err != nil {
		return nil, err
	}
	body, err := encodeString(r.ResponseBody)
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
	source, err := codec.DecodeValue([]byte(m.SourcePayload))
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue([]byte(m.MappedPayload))
	if err != nil {
		return nil, err
	}
	body, err := codec.DecodeValue([]byte(m.ResponseBody))
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

// --- Dead letter models ---

type deadLetterModel struct {
	grove.BaseModel `grove:"table:conduit_dead_letters"`

	ID             string     `grove:"id,pk"             bson:"_id"`
	RouteID        string     `grove:"route_id"          bson:"route_id"`
	RunID          string     `grove:"run_id"            bson:"run_id"`
	SourcePayload  string     `grove:"source_payload"    bson:"source_payload,omitempty"`
	MappedPayload  string     `grove:"mapped_payload"    bson:"mapped_payload,omitempty"`
	Error          string     `grove:"error"             bson:"error"`
	Attempts       int        `grove:"attempts"          bson:"attempts"`
	LastStatusCode int        `grove:"last_status_code"  bson:"last_status_code"`
	Status         string     `grove:"status"            bson:"status"`
	ReplayCount    int        `grove:"replay_count"      bson:"replay_count"`
	LastReplayedAt *time.Time `grove:"last_replayed_at"  bson:"last_replayed_at,omitempty"`
	CreatedAt      time.Time  `grove:"created_at"        bson:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"        bson:"updated_at"`
}

func toDeadLetterModel(e *deadletter.Entry) (*deadLetterModel, error) {
	source, err := encodeString(e.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := encodeString(e.MappedPayload)
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
	source, err := codec.DecodeValue([]byte(m.SourcePayload))
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue([]byte(m.MappedPayload))
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

func encodeString(v any) (string, error) {
	raw, err := codec.EncodeValue(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
